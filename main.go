package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/config"
	"github.com/any-hub/nixify/internal/fetch"
	"github.com/any-hub/nixify/internal/logging"
	"github.com/any-hub/nixify/internal/nixstore"
	"github.com/any-hub/nixify/internal/pipeline"
	"github.com/any-hub/nixify/internal/preload"
	"github.com/any-hub/nixify/internal/server"
	"github.com/any-hub/nixify/internal/server/routes"
	"github.com/any-hub/nixify/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	noPreload   bool
	serve       bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["lock_file"] = cfg.LockFile
		fields["cache_dir"] = cfg.CacheDir
		fields["store_root"] = cfg.StoreRoot
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 磁盘缓存 → 下载器 → CacheIndex → Preloader → pipeline，
	// 所有组件共享同一个缓存根目录与 logger。
	store, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	httpClient := fetch.NewUpstreamClient(cfg.UpstreamTimeout.DurationValue())
	fetcher := fetch.New(store, fetch.NewHTTPDownloader(httpClient, logger), logger)
	index := cache.NewIndex(store, fetcher, cfg.Domains(), logger)

	storeCLI := nixstore.NewCLI(nil, logger)
	preloader := preload.New(store, storeCLI, storeCLI, preload.Options{
		StoreRoot: cfg.StoreRoot,
		BatchSize: cfg.BatchSize,
	}, logger)

	runner := &pipeline.Runner{
		Index:     index,
		Preloader: preloader,
		Options: pipeline.Options{
			LockFile:    cfg.LockFile,
			OutputPath:  cfg.OutputPath,
			ProjectName: cfg.ProjectName,
			Preload:     shouldPreload(cfg, opts, storeCLI.Available),
		},
		Logger: logger,
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["cache_dir"] = cfg.CacheDir
	fields["store_root"] = cfg.StoreRoot
	fields["preload"] = runner.Options.Preload
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(stdErr, "生成失败: %v\n", err)
		return 1
	}
	logger.WithFields(logrus.Fields{
		"action":    "generate",
		"packages":  report.Packages,
		"entries":   len(report.Entries),
		"preloaded": report.Preload.Preloaded,
		"skipped":   report.Preload.Skipped,
	}).Info("运行完成")

	if opts.serve {
		if err := startHTTPServer(cfg, runner, storeCLI, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
	}
	return 0
}

// shouldPreload 要求配置允许、命令行未禁用且 PATH 中存在 nix-store。
func shouldPreload(cfg *config.Config, opts cliOptions, available func() bool) bool {
	if !cfg.EnablePreload || opts.noPreload {
		return false
	}
	return available()
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("nixify", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		noPreload  bool
		serve      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./nixify.toml，可被 NIXIFY_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&noPreload, "no-preload", false, "跳过 Nix store 预加载")
	fs.BoolVar(&serve, "serve", false, "生成完成后启动诊断 HTTP 服务")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("NIXIFY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		noPreload:   noPreload,
		serve:       serve,
	}, nil
}

func startHTTPServer(cfg *config.Config, runner *pipeline.Runner, probe routes.Probe, logger *logrus.Logger) error {
	port := cfg.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, routes.Deps{
		StoreRoot: cfg.StoreRoot,
		Probe:     probe,
		Documents: runner,
	})
	server.NotFound(app)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("诊断服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
