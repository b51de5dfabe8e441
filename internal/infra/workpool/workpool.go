package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group 是一个有界 worker pool：Submit 提交任务，Wait 等待全部完成（barrier）。
//
// 约束：
// - 同时运行的任务数不超过 workers；超出时 Submit 阻塞
// - 单个任务失败不会取消兄弟任务（错误被收集，而不是交给 errgroup 触发取消）
// - ctx 取消后，尚未开始的任务直接跳过；Wait 返回 ctx.Err()
type Group struct {
	ctx context.Context
	eg  *errgroup.Group

	mu   sync.Mutex
	errs []error
}

// New 创建一个最多 workers 个并发任务的 Group（workers<1 按 1 处理）。
func New(ctx context.Context, workers int) *Group {
	if workers < 1 {
		workers = 1
	}
	eg := &errgroup.Group{}
	eg.SetLimit(workers)
	return &Group{ctx: ctx, eg: eg}
}

// Submit 提交一个任务；任务返回的 error 只被收集，不影响其他任务。
func (g *Group) Submit(fn func(ctx context.Context) error) {
	if g.ctx.Err() != nil {
		return
	}
	g.eg.Go(func() error {
		if g.ctx.Err() != nil {
			return nil
		}
		if err := fn(g.ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
		return nil
	})
}

// Wait 阻塞直到所有已提交任务结束，返回各任务的错误（完成顺序）以及取消原因。
func (g *Group) Wait() ([]error, error) {
	_ = g.eg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]error(nil), g.errs...), g.ctx.Err()
}

// Map 用有界 pool 对 items 逐个调用 fn，返回成功结果与失败错误。
//
// 结果按完成顺序排列（不是输入顺序）；需要确定性顺序的调用方必须自行排序。
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, []error, error) {
	g := New(ctx, workers)

	var mu sync.Mutex
	out := make([]R, 0, len(items))
	for _, it := range items {
		g.Submit(func(ctx context.Context) error {
			r, err := fn(ctx, it)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, r)
			mu.Unlock()
			return nil
		})
	}

	errs, err := g.Wait()
	return out, errs, err
}
