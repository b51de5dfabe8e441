package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/excrawl/excrawl/internal/domain"
)

// Header 是每个 shot 段落前的表头。
const Header = "<shotname>\t    <object>\t\t  <source>\t\t\t<version/highest>\t<mayaFile>"

// Lines 把记录渲染为终端报告（每条记录一行）。
//
// 非 verbose：每段先输出 shot 名，行内 shot 列留空；verbose：shot 名写进每一行。
type Lines struct {
	w       io.Writer
	verbose bool
}

func NewLines(w io.Writer, verbose bool) *Lines {
	return &Lines{w: w, verbose: verbose}
}

func (l *Lines) WriteShot(ctx context.Context, shot domain.ShotID, recs []domain.ObjectRecord) error {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	reveal := ""
	if l.verbose {
		reveal = string(shot)
	} else {
		b.WriteString(string(shot))
		b.WriteByte('\n')
	}
	for _, r := range recs {
		b.WriteString(FormatLine(r, reveal))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(l.w, b.String())
	return err
}

func (l *Lines) Close() error { return nil }

// FormatLine 渲染一条记录：shot 列、名称、shot_v<N>、发布名、版本状态、媒体文件。
func FormatLine(r domain.ObjectRecord, shotReveal string) string {
	line := fmt.Sprintf("   %-8s    %-25s\tshot_v%-4d %-15s\t", shotReveal, r.Name, r.ShotVersion, r.ObjectName)
	if r.OutOfDate() {
		line += fmt.Sprintf("OOD: v%d/v%-3d\t", r.ObjectVersion, r.ObjectHighestVersion)
	} else {
		line += fmt.Sprintf("current: v%-3d\t", r.ObjectVersion)
	}
	return line + fmt.Sprintf("%-15s", r.MediaFile)
}
