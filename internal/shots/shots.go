package shots

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/excrawl/excrawl/internal/domain"
)

const (
	// SentinelAll 出现在 include 中时不做 include 过滤。
	SentinelAll = "all"
	// SentinelNone 出现在 exclude 中时不做 exclude 过滤。
	SentinelNone = "none"
)

// DiscoveryError 表示 show 目录无法列出（不存在/无权限）。
// 对整次 crawl 不是致命错误：调用方记录日志后以空集合继续。
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("无法列出 shot 目录 %q：%v", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// List 解析本次要处理的 shot 集合。
//
// 规则（固定）：
// - include 为空：只处理 defaultShot（单 shot 模式，不列目录）
// - include 含 "all"（大小写不敏感）：不做 include 过滤
// - 否则：条目包含任一 include 子串即通过
// - exclude 非空且不含 "none"：包含任一 exclude 子串的条目被移除（在 include 之后）
//
// 返回值按 ShotID 排序，但调用方不应依赖这一点。
func List(showRoot, show string, include, exclude []string, defaultShot string) ([]domain.ShotID, error) {
	include = cleanPatterns(include)
	exclude = cleanPatterns(exclude)

	var names []string
	if len(include) == 0 {
		if strings.TrimSpace(defaultShot) != "" {
			names = []string{strings.TrimSpace(defaultShot)}
		}
	} else {
		dir := filepath.Join(showRoot, show)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &DiscoveryError{Dir: dir, Err: err}
		}
		all := containsFold(include, SentinelAll)
		names = make([]string, 0, len(entries))
		for _, e := range entries {
			n := e.Name()
			if !all && !domain.ContainsAny(n, include) {
				continue
			}
			names = append(names, n)
		}
	}

	out := make([]domain.ShotID, 0, len(names))
	skipExclude := len(exclude) == 0 || containsFold(exclude, SentinelNone)
	for _, n := range names {
		if !skipExclude && domain.ContainsAny(n, exclude) {
			continue
		}
		out = append(out, domain.ShotID(n))
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SplitPatterns 把 CLI 的空格分隔形式拆成 pattern 列表。
func SplitPatterns(s string) []string {
	return strings.Fields(s)
}

func cleanPatterns(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		// 允许 yaml 中写成 "shotA shotB" 这样的一项。
		out = append(out, strings.Fields(p)...)
	}
	return out
}

func containsFold(xs []string, want string) bool {
	for _, x := range xs {
		if strings.EqualFold(x, want) {
			return true
		}
	}
	return false
}
