package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/excrawl/excrawl/internal/domain"
	"github.com/excrawl/excrawl/internal/store"
)

// Store 把每个 shot 的记录作为一个批次写入持久化库：逐条 insert，最后 commit 一次。
//
// ctx 在 commit 前被取消时整批回滚，不会留下半个 shot 的数据。
// 写入不去重：重复 crawl 会累积重复行。
type Store struct {
	st  *store.Store
	log *zap.Logger
}

// NewStore 接管 st 的生命周期（Close 时关闭）。
func NewStore(st *store.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{st: st, log: log}
}

func (s *Store) WriteShot(ctx context.Context, shot domain.ShotID, recs []domain.ObjectRecord) (err error) {
	b, err := s.st.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := b.Rollback(); rbErr != nil {
				s.log.Warn("回滚失败", zap.String("shot", string(shot)), zap.Error(rbErr))
			}
		}
	}()

	for _, r := range recs {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = b.Insert(ctx, r); err != nil {
			return err
		}
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = b.Commit(); err != nil {
		return err
	}
	s.log.Debug("shot 已写入库", zap.String("shot", string(shot)), zap.Int("rows", len(recs)))
	return nil
}

func (s *Store) Close() error {
	return s.st.Close()
}
