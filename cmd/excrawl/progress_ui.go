package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/excrawl/excrawl/internal/app/crawl"
	"github.com/excrawl/excrawl/internal/config"
	"github.com/excrawl/excrawl/internal/domain"
)

var (
	_ crawl.Observer = (*progressUI)(nil)
	_ crawl.Observer = (*planPrinter)(nil)
)

// progressUI 是 --format json 且 stderr 为终端时的进度输出。
//
// 所有过程信息写到 stderr，stdout 只留给 JSON report。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	total   int
	ok      int
	empty   int
	fail    int
	records int
	ood     int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] excrawl crawl\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  show_root: %s\n", eff.ShowRoot)
	fmt.Fprintf(p.w, "  show: %s\n", eff.Show)
	if len(eff.Include) == 0 {
		fmt.Fprintf(p.w, "  shot: %s\n", eff.Shot)
	} else {
		fmt.Fprintf(p.w, "  include: %s\n", formatList(eff.Include))
	}
	fmt.Fprintf(p.w, "  exclude: %s\n", formatList(eff.Exclude))
	if len(eff.Objects) > 0 {
		fmt.Fprintf(p.w, "  objects: %s\n", formatList(eff.Objects))
	}
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	if eff.DB {
		fmt.Fprintf(p.w, "  db: %s\n", eff.DBDriver)
	} else {
		fmt.Fprintln(p.w, "  db: off")
	}
	if eff.HTMLReport != "" {
		fmt.Fprintf(p.w, "  html: %s\n", truncate(eff.HTMLReport, 120))
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "list":
		p.total = intField(fields, "shots")
		fmt.Fprintf(p.w, "列出: shots=%d (%s)\n", p.total, formatShortDuration(dur))
		if msg, _ := fields["discovery"].(string); msg != "" {
			fmt.Fprintf(p.w, "  %s: %s\n", domain.ErrCodeDiscoveryFailed, truncate(msg, 160))
		}
		fmt.Fprintln(p.w)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnShotDone(idx, total int, res domain.ShotResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	switch res.Status {
	case domain.StatusOK:
		p.ok++
	case domain.StatusEmpty:
		p.empty++
	case domain.StatusFailed:
		p.fail++
	}
	ood := 0
	for _, r := range res.Records {
		if r.OutOfDate() {
			ood++
		}
	}
	p.records += len(res.Records)
	p.ood += ood

	switch res.Status {
	case domain.StatusFailed, domain.StatusCancelled:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, res.Shot, strings.ToUpper(res.Status), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusEmpty:
		fmt.Fprintf(p.w, "[%d/%d] %s EMPTY skipped=%d (%s)\n",
			idx, total, res.Shot, res.Skipped, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s OK objects=%d ood=%d skipped=%d (%s)\n",
			idx, total, res.Shot, len(res.Records), ood, res.Skipped, formatShortDuration(dur),
		)
	}

	if idx >= total {
		fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d empty=%d fail=%d objects=%d ood=%d elapsed=%s\n",
			idx, total, p.ok, p.empty, p.fail, p.records, p.ood, formatElapsed(time.Since(p.startedAt)),
		)
	}
}

// planPrinter 是 text 模式下写到 stdout 的计划行，与逐 shot 报告同流。
type planPrinter struct {
	w io.Writer
}

func (p *planPrinter) OnStart(config.EffectiveConfig) {}

func (p *planPrinter) OnPhaseDone(name string, fields map[string]any, _ time.Duration) {
	if name != "list" {
		return
	}
	fmt.Fprintf(p.w, "计划检查 %d 个 shot...\n", intField(fields, "shots"))
}

func (p *planPrinter) OnShotDone(int, int, domain.ShotResult, time.Duration) {}

func formatList(xs []string) string {
	if len(xs) == 0 {
		return "(无)"
	}
	return strings.Join(xs, " ")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
