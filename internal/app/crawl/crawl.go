package crawl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/excrawl/excrawl/internal/app"
	"github.com/excrawl/excrawl/internal/config"
	"github.com/excrawl/excrawl/internal/domain"
	"github.com/excrawl/excrawl/internal/infra/workpool"
	"github.com/excrawl/excrawl/internal/shots"
	"github.com/excrawl/excrawl/internal/shotxml"
	"github.com/excrawl/excrawl/internal/sink"
)

// Deps 是 crawl 的外部协作者。Sink 为 nil 时只生成 report。
// Sink 的生命周期归调用方（Execute 不会 Close）。
type Deps struct {
	Log  *zap.Logger
	Sink sink.Sink
}

// Execute 执行一次 crawl，并返回对外稳定的 CrawlReport。
// 所有可恢复错误都被“降级”为 shot/object 级结果，单个失败不影响其他。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.CrawlReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出进度。
//
// 流程：list -> 逐个 shot（按 ShotID 升序、串行）load -> pool 抽取 -> collate -> sink。
// shot 之间检查 ctx；取消后剩余 shot 不再处理，已抽取未写入的批次不会提交。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.CrawlReport {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	rr := domain.CrawlReport{
		ShowRoot:  eff.ShowRoot,
		Show:      eff.Show,
		StartedAt: time.Now().UTC(),
		Shots:     make([]domain.ShotResult, 0, 32),
	}
	if obs != nil {
		obs.OnStart(eff)
	}

	listStarted := time.Now()
	list, err := shots.List(eff.ShowRoot, eff.Show, eff.Include, eff.Exclude, eff.Shot)
	if err != nil {
		// 非致命：记录后以空集合继续，report 中保留原因以区分“无匹配”。
		log.Error("shot 列表获取失败", zap.Error(err))
		rr.DiscoveryError = err.Error()
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })

	log.Info("计划检查 shots", zap.String("show", eff.Show), zap.Int("shots", len(list)))
	if obs != nil {
		obs.OnPhaseDone("list", map[string]any{
			"shots":     len(list),
			"discovery": rr.DiscoveryError,
		}, time.Since(listStarted))
	}

	for i, shot := range list {
		if ctx.Err() != nil {
			rr.Cancelled = true
			for _, rest := range list[i:] {
				rr.Shots = append(rr.Shots, cancelledShot(rest))
			}
			break
		}

		started := time.Now()
		res := crawlShot(ctx, eff, deps.Sink, log, shot)
		if res.Status == domain.StatusCancelled {
			rr.Cancelled = true
		}
		rr.Shots = append(rr.Shots, res)
		if obs != nil {
			obs.OnShotDone(i+1, len(list), res, time.Since(started))
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func crawlShot(ctx context.Context, eff config.EffectiveConfig, out sink.Sink, log *zap.Logger, shot domain.ShotID) domain.ShotResult {
	res := domain.ShotResult{Shot: shot, Status: domain.StatusOK}
	shotLog := log.With(zap.String("shot", string(shot)))

	doc, err := shotxml.Load(eff.ShowRoot, eff.Show, shot)
	if err != nil {
		shotLog.Error("shot 描述文档解析失败", zap.Error(err))
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeParseFailed
		res.ErrorMsg = err.Error()
		return res
	}
	shotLog.Debug("检查描述文档", zap.String("path", shotxml.Path(eff.ShowRoot, eff.Show, shot)))

	objs := doc.Objects()
	recs, errs, err := workpool.Map(ctx, eff.Concurrency, objs, func(ctx context.Context, el shotxml.Element) (domain.ObjectRecord, error) {
		return shotxml.Extract(el)
	})
	for _, e := range errs {
		shotLog.Debug("object 无效，已跳过", zap.Error(e))
	}
	res.Skipped = len(errs)
	if err != nil {
		return cancelled(res, err)
	}

	recs = app.Collate(shot, recs, eff.Objects)
	res.Records = recs
	if len(recs) == 0 {
		res.Status = domain.StatusEmpty
		return res
	}

	if out != nil {
		if err := out.WriteShot(ctx, shot, recs); err != nil {
			if ctx.Err() != nil {
				return cancelled(res, err)
			}
			shotLog.Error("shot 输出失败", zap.Error(err))
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeSinkFailed
			res.ErrorMsg = err.Error()
			return res
		}
	}

	shotLog.Debug("shot 完成", zap.Int("records", len(recs)), zap.Int("skipped", res.Skipped))
	return res
}

func cancelled(res domain.ShotResult, err error) domain.ShotResult {
	res.Status = domain.StatusCancelled
	res.ErrorCode = domain.ErrCodeCancelled
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.ErrorMsg = fmt.Sprintf("crawl 已取消：%v", err)
	} else {
		res.ErrorMsg = err.Error()
	}
	return res
}

func cancelledShot(shot domain.ShotID) domain.ShotResult {
	return domain.ShotResult{
		Shot:      shot,
		Status:    domain.StatusCancelled,
		ErrorCode: domain.ErrCodeCancelled,
		ErrorMsg:  "crawl 已取消，未处理",
	}
}
