package domain

import "encoding/json"

// ObjectRecord 是从 shot 描述文档的一个 Object 节点抽取出的结构化记录。
//
// 不变量：
// - 版本字段都来自文本解析，且非负；任一必填字段解析失败则整条丢弃（不会出现半填充记录）
// - OutOfDate 永远由版本字段现算，不单独存储
// - Shot 在抽取时为空，由聚合阶段（app.StampShot）写入一次
type ObjectRecord struct {
	Name                 string
	ShotVersion          int
	ObjectName           string
	ObjectVersion        int
	ObjectHighestVersion int
	MediaFile            string
	Shot                 ShotID
}

// OutOfDate 报告引用的版本是否落后于已发布的最高版本。
func (r ObjectRecord) OutOfDate() bool {
	return r.ObjectHighestVersion > r.ObjectVersion
}

type recordJSON struct {
	Shot                 ShotID `json:"shot"`
	Name                 string `json:"name"`
	ShotVersion          int    `json:"shot_version"`
	ObjectName           string `json:"object_name"`
	ObjectVersion        int    `json:"object_version"`
	ObjectHighestVersion int    `json:"object_highest_version"`
	OutOfDate            bool   `json:"out_of_date"`
	MediaFile            string `json:"media_file"`
}

// MarshalJSON 把派生字段 out_of_date 一并输出（读取方不必自己比较版本）。
func (r ObjectRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Shot:                 r.Shot,
		Name:                 r.Name,
		ShotVersion:          r.ShotVersion,
		ObjectName:           r.ObjectName,
		ObjectVersion:        r.ObjectVersion,
		ObjectHighestVersion: r.ObjectHighestVersion,
		OutOfDate:            r.OutOfDate(),
		MediaFile:            r.MediaFile,
	})
}

// UnmarshalJSON 忽略输入中的 out_of_date，始终以版本字段为准。
func (r *ObjectRecord) UnmarshalJSON(b []byte) error {
	var in recordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = ObjectRecord{
		Name:                 in.Name,
		ShotVersion:          in.ShotVersion,
		ObjectName:           in.ObjectName,
		ObjectVersion:        in.ObjectVersion,
		ObjectHighestVersion: in.ObjectHighestVersion,
		MediaFile:            in.MediaFile,
		Shot:                 in.Shot,
	}
	return nil
}
