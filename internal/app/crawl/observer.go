package crawl

import (
	"time"

	"github.com/excrawl/excrawl/internal/config"
	"github.com/excrawl/excrawl/internal/domain"
)

// Observer 用于把 crawl 进度从核心流程中解耦出来。
//
// 约束：crawl 包只发事件，不做任何终端输出。shot 串行处理，事件来自调用 Execute 的 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（目前只有 "list"）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnShotDone 在某个 shot 处理完成时调用（含 empty/failed/cancelled）。
	OnShotDone(idx, total int, res domain.ShotResult, dur time.Duration)
}
