package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK        = "ok"
	StatusEmpty     = "empty"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const (
	ErrCodeDiscoveryFailed = "discovery_failed"
	ErrCodeParseFailed     = "parse_failed"
	ErrCodeSinkFailed      = "sink_failed"
	ErrCodeCancelled       = "cancelled"
)

// CrawlReport 是一次 crawl 的对外稳定输出（--format json / report 文件）。
//
// 约束：必须能区分“没有匹配”（shot 为 empty）与“shot 加载失败”（failed）。
type CrawlReport struct {
	ShowRoot string `json:"show_root"`
	Show     string `json:"show"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// DiscoveryError 非空表示 show 目录无法列出（crawl 仍会以空集合继续）。
	DiscoveryError string `json:"discovery_error,omitempty"`
	Cancelled      bool   `json:"cancelled"`

	Summary CrawlSummary `json:"summary"`
	Shots   []ShotResult `json:"shots"`
}

type CrawlSummary struct {
	Shots          int `json:"shots"`
	OK             int `json:"ok"`
	Empty          int `json:"empty"`
	Failed         int `json:"failed"`
	Cancelled      int `json:"cancelled"`
	Records        int `json:"records"`
	OutOfDate      int `json:"out_of_date"`
	SkippedObjects int `json:"skipped_objects"`
}

type ShotResult struct {
	Shot   ShotID `json:"shot"`
	Status string `json:"status"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	// Skipped 是被丢弃的 Object 节点数（字段缺失/非整数版本）。
	Skipped int            `json:"skipped"`
	Records []ObjectRecord `json:"records"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) shots 稳定排序：按 ShotID 字典序
// 3) summary 由 shots 计算得出
func (r *CrawlReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Shots, func(i, j int) bool { return r.Shots[i].Shot < r.Shots[j].Shot })

	var s CrawlSummary
	for _, sr := range r.Shots {
		s.Shots++
		switch sr.Status {
		case StatusOK:
			s.OK++
		case StatusEmpty:
			s.Empty++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
		s.SkippedObjects += sr.Skipped
		s.Records += len(sr.Records)
		for _, rec := range sr.Records {
			if rec.OutOfDate() {
				s.OutOfDate++
			}
		}
	}
	r.Summary = s
}

// HasFailures 报告本次 crawl 是否有需要运维关注的失败（用于 CLI 退出码）。
func (r CrawlReport) HasFailures() bool {
	return r.DiscoveryError != "" || r.Summary.Failed > 0
}

// MarshalJSON 保证 shots/records 为空时输出 [] 而不是 null。
func (r CrawlReport) MarshalJSON() ([]byte, error) {
	type Alias CrawlReport
	a := Alias(r)
	if a.Shots == nil {
		a.Shots = []ShotResult{}
	}
	for i := range a.Shots {
		if a.Shots[i].Records == nil {
			a.Shots[i].Records = []ObjectRecord{}
		}
	}
	return json.Marshal(a)
}
