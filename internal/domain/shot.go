package domain

import "strings"

// ShotID 是 show 目录下的一个条目名（一个 shot 对应一个目录）。
//
// ShotID 是不透明字符串：除了 include/exclude/objects 的子串匹配，不做任何结构化比较。
type ShotID string

// ContainsAny 报告 s 是否包含 patterns 中任意一个子串。
// 空 pattern 会匹配一切（与 strings.Contains 一致），调用方应先去掉空白项。
func ContainsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ShotRecords 是某个 shot 的一批抽取结果（尚未排序/过滤）。
type ShotRecords struct {
	Shot    ShotID
	Records []ObjectRecord
}

// ShotStat 是持久化库中按 shot 聚合的统计行。
type ShotStat struct {
	Shot      ShotID `json:"shot"`
	Objects   int    `json:"objects"`
	OutOfDate int    `json:"out_of_date"`
}
