package sink

import (
	"context"
	"errors"

	"github.com/excrawl/excrawl/internal/domain"
)

// Sink 接收单个 shot 过滤、排序后的记录。
//
// 约束：
// - 只会收到非空的 shot（空 shot 不产生任何输出）
// - 由 crawl 驱动层串行调用，实现无需并发安全
type Sink interface {
	WriteShot(ctx context.Context, shot domain.ShotID, recs []domain.ObjectRecord) error
	Close() error
}

type multi []Sink

// Multi 把多个 sink 组合为一个（终端报告与持久化可以同时启用）。
//
// WriteShot 按传入顺序调用各 sink，遇到第一个错误即停止：排在后面的 sink
// 不会看到失败的 shot（持久化放在最前，则“已输出”意味着“已入库”）。
// Close 总是关闭全部 sink，错误合并返回。
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) WriteShot(ctx context.Context, shot domain.ShotID, recs []domain.ObjectRecord) error {
	for _, s := range m {
		if err := s.WriteShot(ctx, shot, recs); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
