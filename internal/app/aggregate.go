package app

import (
	"sort"

	"github.com/excrawl/excrawl/internal/domain"
)

// StampShot 把 shot 写入每条记录。这是记录在离开单 shot 聚合阶段前唯一的一次修改。
func StampShot(shot domain.ShotID, recs []domain.ObjectRecord) []domain.ObjectRecord {
	for i := range recs {
		recs[i].Shot = shot
	}
	return recs
}

// FilterObjects 按名称过滤：任一 filter 是 ObjectName 或 Name 的子串即保留。
// filters 为空时原样返回。
func FilterObjects(recs []domain.ObjectRecord, filters []string) []domain.ObjectRecord {
	if len(filters) == 0 {
		return recs
	}
	out := make([]domain.ObjectRecord, 0, len(recs))
	for _, r := range recs {
		if domain.ContainsAny(r.ObjectName, filters) || domain.ContainsAny(r.Name, filters) {
			out = append(out, r)
		}
	}
	return out
}

// SortByName 按 Name 字典序稳定排序（pool 的完成顺序不确定，这里恢复确定性）。
func SortByName(recs []domain.ObjectRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
}

// Collate 对单个 shot 的抽取结果做 stamp -> filter -> sort。
func Collate(shot domain.ShotID, recs []domain.ObjectRecord, filters []string) []domain.ObjectRecord {
	recs = FilterObjects(StampShot(shot, recs), filters)
	SortByName(recs)
	return recs
}

// Aggregate 是 Collate 的批量形式：合并多个 shot 的结果，shot 按 ShotID 升序，shot 内按 Name 升序。
// 过滤后为空的 shot 不贡献任何记录。crawl 驱动层逐 shot 调用 Collate（shot 已按升序处理），
// 拼接各 shot 的输出与 Aggregate 的结果一致。
func Aggregate(sets []domain.ShotRecords, filters []string) []domain.ObjectRecord {
	sorted := append([]domain.ShotRecords(nil), sets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Shot < sorted[j].Shot })

	out := make([]domain.ObjectRecord, 0, 64)
	for _, s := range sorted {
		recs := append([]domain.ObjectRecord(nil), s.Records...)
		out = append(out, Collate(s.Shot, recs, filters)...)
	}
	return out
}
