package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/excrawl/excrawl/internal/app/crawl"
	"github.com/excrawl/excrawl/internal/config"
	"github.com/excrawl/excrawl/internal/domain"
	"github.com/excrawl/excrawl/internal/infra/fsx"
	"github.com/excrawl/excrawl/internal/shots"
	"github.com/excrawl/excrawl/internal/sink"
	"github.com/excrawl/excrawl/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// exitError 携带退出码；错误信息已经输出过，cobra 不再重复打印。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(stderr, "参数错误：%v\n", err)
		return 2
	}
	return 0
}

type options struct {
	config      string
	root        string
	show        string
	shot        string
	include     string
	exclude     string
	verbose     bool
	db          bool
	dbDriver    string
	dbDSN       string
	concurrency int
	html        string
	format      string
	reportFile  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "excrawl [objects...]",
		Short: "扫描 show 下各 shot 的描述文档，报告 object 引用及其版本状态",
		Long: `excrawl 读取 <root>/<show>/<shot>/<shot>.xml，抽取其中的 Object 引用，
标记落后于最高发布版本的引用（OOD），输出到终端，并可选写入数据库供后续分析。

位置参数是 object 名称过滤（子串匹配 name 或发布名，任一命中即保留）。`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, o, args, stdout, stderr)
		},
	}
	bindCrawlFlags(root, o)

	crawlCmd := &cobra.Command{
		Use:           "crawl [objects...]",
		Short:         "执行一次 crawl（与不带子命令相同）",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, o, args, stdout, stderr)
		},
	}
	bindCrawlFlags(crawlCmd, o)

	statsCmd := &cobra.Command{
		Use:           "stats",
		Short:         "按 shot 汇总数据库中的 object 数与 OOD 数",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, o, stdout, stderr)
		},
	}
	bindStoreFlags(statsCmd, o)

	root.AddCommand(crawlCmd, statsCmd)
	return root
}

func bindStoreFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVar(&o.config, "config", "", "配置文件路径（默认尝试 ./"+config.FileName+"）")
	f.StringVar(&o.dbDriver, "db-driver", store.DriverSQLite, "数据库驱动：sqlite|postgres|mysql")
	f.StringVar(&o.dbDSN, "db-dsn", "", "数据库 DSN（sqlite 为文件路径，默认 "+store.DefaultDSN()+"）")
	f.StringVar(&o.format, "format", "text", "输出格式：text|json")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "输出更多信息（debug 日志，每行带 shot 列）")
}

func bindCrawlFlags(cmd *cobra.Command, o *options) {
	bindStoreFlags(cmd, o)
	f := cmd.Flags()
	f.StringVar(&o.root, "root", config.DefaultShowRoot, "show 所在的根目录")
	f.StringVarP(&o.show, "show", "s", config.DefaultShow, "要检查的 show")
	f.StringVar(&o.shot, "shot", config.DefaultShot, "未指定 --include 时检查的单个 shot")
	f.StringVar(&o.include, "include", "", "只包含这些 shot（空格分隔子串）；ALL 表示全部")
	f.StringVar(&o.exclude, "exclude", "system", "排除这些 shot（空格分隔子串）；NONE 表示不排除")
	f.BoolVar(&o.db, "db", false, "把结果写入数据库")
	f.IntVar(&o.concurrency, "concurrency", config.DefaultConcurrency, "每个 shot 的抽取 worker 数")
	f.StringVar(&o.html, "html", "", "额外写出 HTML 报告到该路径")
	f.StringVar(&o.reportFile, "report", "", "额外写出 JSON report 到该路径")
}

func cliArgs(cmd *cobra.Command, o *options, objects []string) config.CLIArgs {
	changed := cmd.Flags().Changed
	cli := config.CLIArgs{
		ConfigPath: o.config,
		Objects:    objects,
		Verbose:    o.verbose,
		HTMLReport: o.html,
	}
	if cmd.Flags().Lookup("root") != nil {
		cli.ShowRoot, cli.ShowRootSet = o.root, changed("root")
		cli.Show, cli.ShowSet = o.show, changed("show")
		cli.Shot, cli.ShotSet = o.shot, changed("shot")
		cli.Include, cli.IncludeSet = shots.SplitPatterns(o.include), changed("include")
		cli.Exclude, cli.ExcludeSet = shots.SplitPatterns(o.exclude), changed("exclude")
		cli.DB, cli.DBSet = o.db, changed("db")
		cli.Concurrency, cli.ConcurrencySet = o.concurrency, changed("concurrency")
	}
	cli.DBDriver, cli.DBDriverSet = o.dbDriver, changed("db-driver")
	cli.DBDSN, cli.DBDSNSet = o.dbDSN, changed("db-dsn")
	return cli
}

func loadConfig(cmd *cobra.Command, o *options, objects []string, stderr io.Writer) (config.EffectiveConfig, error) {
	switch o.format {
	case "text", "json":
	default:
		fmt.Fprintf(stderr, "参数错误：--format 只能是 text 或 json，实际是 %q\n", o.format)
		return config.EffectiveConfig{}, &exitError{code: 2}
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return config.EffectiveConfig{}, &exitError{code: 1}
	}
	eff, err := config.LoadEffective(cwd, cliArgs(cmd, o, objects))
	if err != nil {
		fmt.Fprintf(stderr, "配置错误：%v\n", err)
		if o.format == "json" {
			// stdout 仍然只有一个 JSON：带 error_code 的配置错误。
			_ = json.NewEncoder(cmd.OutOrStdout()).Encode(configErrorReport{
				ErrorCode: config.Code(err),
				ErrorMsg:  err.Error(),
			})
		}
		return config.EffectiveConfig{}, &exitError{code: 1}
	}
	return eff, nil
}

// configErrorReport 是 --format json 下配置失败时写到 stdout 的内容。
type configErrorReport struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func runCrawl(cmd *cobra.Command, o *options, objects []string, stdout, stderr io.Writer) error {
	eff, err := loadConfig(cmd, o, objects, stderr)
	if err != nil {
		return err
	}

	log := newLogger(stderr, eff.Verbose)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	sinks, err := newSinks(ctx, eff, o.format, stdout, log)
	if err != nil {
		fmt.Fprintf(stderr, "打开数据库失败：%v\n", err)
		return &exitError{code: 1}
	}
	out := sink.Multi(sinks...)

	var obs crawl.Observer
	switch {
	case o.format == "text":
		obs = &planPrinter{w: stdout}
	case isTTY(stderr):
		obs = newProgressUI(stderr)
	}

	rr := crawl.ExecuteWithObserver(ctx, eff, crawl.Deps{Log: log, Sink: out}, obs)

	failed := rr.HasFailures() || rr.Cancelled
	if err := out.Close(); err != nil {
		fmt.Fprintf(stderr, "关闭输出失败：%v\n", err)
		failed = true
	}
	if o.reportFile != "" {
		if err := writeReportFile(o.reportFile, rr); err != nil {
			fmt.Fprintf(stderr, "写入 report 失败：%v\n", err)
			failed = true
		}
	}
	if o.format == "json" {
		_ = json.NewEncoder(stdout).Encode(rr)
	}
	emitSummary(stderr, rr)

	if failed {
		return &exitError{code: 1}
	}
	return nil
}

// newSinks 按写入顺序组装 sink：持久化在前，终端与 HTML 在后，
// 入库失败的 shot 不会出现在输出里。
func newSinks(ctx context.Context, eff config.EffectiveConfig, format string, stdout io.Writer, log *zap.Logger) ([]sink.Sink, error) {
	sinks := make([]sink.Sink, 0, 3)
	if eff.DB {
		st, err := store.Open(ctx, eff.DBDriver, eff.DBDSN, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewStore(st, log))
	}
	if format == "text" {
		sinks = append(sinks, sink.NewLines(stdout, eff.Verbose))
	}
	if eff.HTMLReport != "" {
		sinks = append(sinks, sink.NewHTML(eff.HTMLReport, eff.Show))
	}
	return sinks, nil
}

func runStats(cmd *cobra.Command, o *options, stdout, stderr io.Writer) error {
	eff, err := loadConfig(cmd, o, nil, stderr)
	if err != nil {
		return err
	}
	log := newLogger(stderr, eff.Verbose)
	defer func() { _ = log.Sync() }()

	st, err := store.Open(cmd.Context(), eff.DBDriver, eff.DBDSN, log)
	if err != nil {
		fmt.Fprintf(stderr, "打开数据库失败：%v\n", err)
		return &exitError{code: 1}
	}
	defer st.Close()

	stats, err := st.ShotStats(cmd.Context())
	if err != nil {
		fmt.Fprintf(stderr, "查询失败：%v\n", err)
		return &exitError{code: 1}
	}

	if o.format == "json" {
		if stats == nil {
			stats = []domain.ShotStat{}
		}
		_ = json.NewEncoder(stdout).Encode(stats)
		return nil
	}
	fmt.Fprintf(stdout, "%-25s %8s %12s\n", "<shot>", "<objects>", "<out_of_date>")
	shotsWithOOD := 0
	for _, s := range stats {
		fmt.Fprintf(stdout, "%-25s %8d %12d\n", s.Shot, s.Objects, s.OutOfDate)
		if s.OutOfDate > 0 {
			shotsWithOOD++
		}
	}
	fmt.Fprintf(stdout, "shots=%d shots_with_ood=%d\n", len(stats), shotsWithOOD)
	return nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level)).Named("excrawl")
}

func emitSummary(w io.Writer, rr domain.CrawlReport) {
	s := rr.Summary
	fmt.Fprintf(w, "完成：shots=%d ok=%d empty=%d failed=%d cancelled=%d records=%d ood=%d skipped_objects=%d\n",
		s.Shots, s.OK, s.Empty, s.Failed, s.Cancelled, s.Records, s.OutOfDate, s.SkippedObjects,
	)
	if rr.DiscoveryError != "" {
		fmt.Fprintf(w, "%s: %s\n", domain.ErrCodeDiscoveryFailed, rr.DiscoveryError)
	}
	for _, sr := range rr.Shots {
		if sr.Status != domain.StatusFailed {
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", sr.Shot, sr.ErrorCode, sr.ErrorMsg)
	}
}

func writeReportFile(path string, rr domain.CrawlReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, append(b, '\n'))
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
