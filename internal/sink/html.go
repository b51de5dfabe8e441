package sink

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/excrawl/excrawl/internal/domain"
	"github.com/excrawl/excrawl/internal/infra/fsx"
)

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>excrawl {{.Show}}</title></head>
<body>
<h1>{{.Show}}</h1>
<p class="generated">{{.Generated}}</p>
{{range .Shots}}<section class="shot" id="shot-{{.Shot}}">
<h2>{{.Shot}}</h2>
<table>
<tr><th>name</th><th>shot</th><th>object</th><th>version</th><th>highest</th><th>media</th></tr>
{{range .Records}}<tr class="{{if .OutOfDate}}ood{{else}}current{{end}}"><td class="name">{{.Name}}</td><td>shot_v{{.ShotVersion}}</td><td class="object">{{.ObjectName}}</td><td class="version">v{{.ObjectVersion}}</td><td class="highest">v{{.ObjectHighestVersion}}</td><td class="media">{{.MediaFile}}</td></tr>
{{end}}</table>
</section>
{{end}}</body>
</html>
`))

// HTML 收集所有 shot，在 Close 时原子写出一个独立的 HTML 报告文件。
type HTML struct {
	path  string
	show  string
	now   func() time.Time
	shots []domain.ShotRecords
}

func NewHTML(path, show string) *HTML {
	return &HTML{path: path, show: show, now: time.Now}
}

func (h *HTML) WriteShot(ctx context.Context, shot domain.ShotID, recs []domain.ObjectRecord) error {
	h.shots = append(h.shots, domain.ShotRecords{
		Shot:    shot,
		Records: append([]domain.ObjectRecord(nil), recs...),
	})
	return nil
}

func (h *HTML) Close() error {
	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, struct {
		Show      string
		Generated string
		Shots     []domain.ShotRecords
	}{
		Show:      h.show,
		Generated: h.now().UTC().Format(time.RFC3339),
		Shots:     h.shots,
	})
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(h.path, buf.Bytes())
}
