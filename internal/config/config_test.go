package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/excrawl/excrawl/internal/store"
)

func TestLoadEffective_DefaultsWithoutFile(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ShowRoot != filepath.Clean(cwd) {
		t.Fatalf("show_root 应默认为 cwd：%q", eff.ShowRoot)
	}
	if eff.Show != DefaultShow || eff.Shot != DefaultShot {
		t.Fatalf("show/shot 默认值不正确：%q %q", eff.Show, eff.Shot)
	}
	if !reflect.DeepEqual(eff.Exclude, DefaultExclude) {
		t.Fatalf("exclude 默认值不正确：%v", eff.Exclude)
	}
	if len(eff.Include) != 0 {
		t.Fatalf("include 默认应为空（单 shot 模式）：%v", eff.Include)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("concurrency 默认值不正确：%d", eff.Concurrency)
	}
	if eff.DB || eff.DBDriver != store.DriverSQLite || eff.DBDSN != store.DefaultDSN() {
		t.Fatalf("db 默认值不正确：%v %q %q", eff.DB, eff.DBDriver, eff.DBDSN)
	}
}

func TestLoadEffective_FileThenCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), `
show_root: shows
show: demo
include: ["sq010 sq020"]
exclude: []
concurrency: 100
db:
  enabled: true
  dsn: data/crawl.db
html_report: out/report.html
`)

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ShowRoot != filepath.Join(cwd, "shows") || eff.Show != "demo" {
		t.Fatalf("show_root/show 不正确：%q %q", eff.ShowRoot, eff.Show)
	}
	if !reflect.DeepEqual(eff.Include, []string{"sq010", "sq020"}) {
		t.Fatalf("include 应按空白拆分：%v", eff.Include)
	}
	if len(eff.Exclude) != 0 {
		t.Fatalf("配置文件显式给出空 exclude 时不应回退默认值：%v", eff.Exclude)
	}
	if eff.Concurrency != MaxConcurrency {
		t.Fatalf("concurrency 应截断到 %d：%d", MaxConcurrency, eff.Concurrency)
	}
	if !eff.DB || eff.DBDSN != "data/crawl.db" {
		t.Fatalf("db 配置不正确：%v %q", eff.DB, eff.DBDSN)
	}
	if eff.HTMLReport != filepath.Join(cwd, "out", "report.html") {
		t.Fatalf("html_report 应相对配置文件目录：%q", eff.HTMLReport)
	}

	// CLI 覆盖：--db=false 必须能覆盖 db.enabled=true。
	eff, err = LoadEffective(cwd, CLIArgs{
		Show: "other", ShowSet: true,
		Include: []string{"all"}, IncludeSet: true,
		DB: false, DBSet: true,
		Concurrency: 4, ConcurrencySet: true,
		Objects: []string{"Char"},
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Show != "other" || eff.DB || eff.Concurrency != 4 {
		t.Fatalf("CLI 未覆盖配置：%+v", eff)
	}
	if !reflect.DeepEqual(eff.Include, []string{"all"}) || !reflect.DeepEqual(eff.Objects, []string{"Char"}) {
		t.Fatalf("include/objects 不正确：%v %v", eff.Include, eff.Objects)
	}
}

func TestLoadEffective_ExplicitConfigMissing(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "nope.yaml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %s，实际：%v", ErrCodeNotFound, err)
	}
}

func TestLoadEffective_InvalidYAML(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), "show: [unterminated")

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %s，实际：%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_JSONAccepted(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "cfg.json"), `{"show": "demo", "shot": "shotA", "exclude": ["none"]}`)

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "cfg.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Show != "demo" || eff.Shot != "shotA" || !reflect.DeepEqual(eff.Exclude, []string{"none"}) {
		t.Fatalf("JSON 配置未生效：%+v", eff)
	}
}

func TestLoadEffective_NoUsableShowOrShot(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{Show: "", ShowSet: true})
	if Code(err) != ErrCodeMissingShow {
		t.Fatalf("期望 %s，实际：%v", ErrCodeMissingShow, err)
	}

	_, err = LoadEffective(cwd, CLIArgs{Shot: " ", ShotSet: true})
	if Code(err) != ErrCodeMissingShot {
		t.Fatalf("期望 %s，实际：%v", ErrCodeMissingShot, err)
	}

	// 有 include 时 shot 为空是允许的。
	if _, err := LoadEffective(cwd, CLIArgs{Shot: "", ShotSet: true, Include: []string{"all"}, IncludeSet: true}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}

func TestLoadEffective_NetworkDriverNeedsDSN(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{DB: true, DBSet: true, DBDriver: "postgres", DBDriverSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %s，实际：%v", ErrCodeInvalid, err)
	}

	_, err = LoadEffective(cwd, CLIArgs{DBDriver: "oracle", DBDriverSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %s，实际：%v", ErrCodeInvalid, err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
