package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/excrawl/excrawl/internal/store"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingShow 表示没有可用的 show。
	ErrCodeMissingShow = "config_missing_show"
	// ErrCodeMissingShot 表示单 shot 模式（include 为空）下没有可用的 shot。
	ErrCodeMissingShot = "config_missing_shot"
)

const (
	// FileName 是 cwd 下自动发现的配置文件名（可选）。
	FileName = "excrawl.yaml"

	DefaultShowRoot    = "."
	DefaultShow        = "show"
	DefaultShot        = "shot001"
	DefaultConcurrency = 2
	MaxConcurrency     = 32
)

// DefaultExclude 是 exclude 的内置默认值。
var DefaultExclude = []string{"system"}

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息，
// 以保证例如 --db=false 能覆盖配置文件中的 db.enabled=true。
type CLIArgs struct {
	ConfigPath string

	ShowRoot    string
	ShowRootSet bool
	Show        string
	ShowSet     bool
	Shot        string
	ShotSet     bool

	Include    []string
	IncludeSet bool
	Exclude    []string
	ExcludeSet bool

	Objects []string
	Verbose bool

	DB          bool
	DBSet       bool
	DBDriver    string
	DBDriverSet bool
	DBDSN       string
	DBDSNSet    bool

	Concurrency    int
	ConcurrencySet bool

	HTMLReport string
}

// FileConfig 对应 excrawl.yaml 的解析结构（JSON 是 YAML 的子集，同样可用）。
type FileConfig struct {
	ShowRoot    string    `yaml:"show_root"`
	Show        string    `yaml:"show"`
	Shot        string    `yaml:"shot"`
	Include     []string  `yaml:"include"`
	Exclude     *[]string `yaml:"exclude"`
	Objects     []string  `yaml:"objects"`
	Concurrency int       `yaml:"concurrency"`
	DB          DBConfig  `yaml:"db"`
	HTMLReport  string    `yaml:"html_report"`
}

type DBConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// EffectiveConfig 是合并并规范化后的最终配置，实现层直接消费。
type EffectiveConfig struct {
	ShowRoot string
	Show     string
	Shot     string

	Include []string
	Exclude []string
	Objects []string

	Verbose     bool
	Concurrency int

	DB       bool
	DBDriver string
	DBDSN    string

	HTMLReport string
}

// Error 是配置阶段的结构化错误（带 error_code），在任何 crawl 开始前返回。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingShow:
		return fmt.Sprintf("%s：未指定 show（--show 或配置文件 show）", e.Code)
	case ErrCodeMissingShot:
		return fmt.Sprintf("%s：未指定 --include 时必须有 shot（--shot 或配置文件 shot）", e.Code)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与 CLI 参数合并。
//
// 发现规则（固定）：
// 1) CLI 给了 --config：必须存在
// 2) 否则尝试 <cwd>/excrawl.yaml（可选）
//
// 覆盖优先级：CLI > 配置文件 > 内置默认。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	explicit := strings.TrimSpace(cli.ConfigPath) != ""
	if explicit {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if explicit && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	// 配置文件中的相对路径以配置文件所在目录为基准。
	base := cwdAbs
	if exists {
		base = filepath.Dir(cfgPath)
	}
	return merge(cwdAbs, base, cli, fc, cfgPath)
}

func merge(cwdAbs, base string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	showRoot := DefaultShowRoot
	switch {
	case cli.ShowRootSet:
		showRoot = absCleanFrom(cwdAbs, cli.ShowRoot)
	case strings.TrimSpace(fc.ShowRoot) != "":
		showRoot = absCleanFrom(base, fc.ShowRoot)
	default:
		showRoot = absCleanFrom(cwdAbs, showRoot)
	}
	if showRoot == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("show_root 不能为空")}
	}

	show := pick(cli.ShowSet, cli.Show, fc.Show, DefaultShow)
	if show == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingShow, Path: cfgPath}
	}
	shot := pick(cli.ShotSet, cli.Shot, fc.Shot, DefaultShot)

	include := fc.Include
	if cli.IncludeSet {
		include = cli.Include
	}
	include = nonEmpty(include)
	if len(include) == 0 && shot == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingShot, Path: cfgPath}
	}

	exclude := DefaultExclude
	if cli.ExcludeSet {
		exclude = cli.Exclude
	} else if fc.Exclude != nil {
		exclude = *fc.Exclude
	}

	objects := fc.Objects
	if len(cli.Objects) > 0 {
		objects = cli.Objects
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	db := false
	if cli.DBSet {
		db = cli.DB
	} else if fc.DB.Enabled != nil {
		db = *fc.DB.Enabled
	}
	driver := strings.ToLower(pick(cli.DBDriverSet, cli.DBDriver, fc.DB.Driver, store.DriverSQLite))
	switch driver {
	case store.DriverSQLite, store.DriverPostgres, store.DriverMySQL:
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("db.driver 只能是 sqlite|postgres|mysql，实际是 %q", driver)}
	}
	dsn := pick(cli.DBDSNSet, cli.DBDSN, fc.DB.DSN, "")
	if dsn == "" {
		if driver != store.DriverSQLite && db {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("db.driver=%s 时必须提供 dsn", driver)}
		}
		if driver == store.DriverSQLite {
			dsn = store.DefaultDSN()
		}
	}

	htmlReport := strings.TrimSpace(cli.HTMLReport)
	if htmlReport != "" {
		htmlReport = absCleanFrom(cwdAbs, htmlReport)
	} else if strings.TrimSpace(fc.HTMLReport) != "" {
		htmlReport = absCleanFrom(base, fc.HTMLReport)
	}

	return EffectiveConfig{
		ShowRoot:    showRoot,
		Show:        show,
		Shot:        shot,
		Include:     append([]string(nil), include...),
		Exclude:     append([]string(nil), nonEmpty(exclude)...),
		Objects:     append([]string(nil), nonEmpty(objects)...),
		Verbose:     cli.Verbose,
		Concurrency: concurrency,
		DB:          db,
		DBDriver:    driver,
		DBDSN:       dsn,
		HTMLReport:  htmlReport,
	}, nil
}

// pick 按 CLI > 配置文件 > 默认 选择字符串值。
func pick(cliSet bool, cliVal, fileVal, def string) string {
	if cliSet {
		return strings.TrimSpace(cliVal)
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return v
	}
	return def
}

// nonEmpty 按空白拆分并去掉空项（"shotA shotB" 视为两个 pattern）。
func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.Fields(s)...)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。exists 表示文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
