package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/lockfile"
	"github.com/any-hub/nixify/internal/logging"
	"github.com/any-hub/nixify/internal/manifest"
	"github.com/any-hub/nixify/internal/preload"
)

// Classifier 把锁定的包映射为缓存条目，由 cache.Index 实现。
type Classifier interface {
	Classify(ctx context.Context, pkg lockfile.Package) (cache.Entry, bool, error)
}

// Preloader 把缓存条目注册进 store，由 preload.Preloader 实现。
type Preloader interface {
	Run(ctx context.Context, entries []cache.Entry) (preload.Result, error)
}

// Options 描述一次运行的输入输出位置。
type Options struct {
	LockFile    string
	OutputPath  string
	ProjectName string
	Preload     bool
}

// Report 汇总一次运行的结果。
type Report struct {
	Packages int
	Entries  []cache.Entry
	Document manifest.Document
	Preload  preload.Result
}

// Runner 顺序执行 collect → generate → preload。
type Runner struct {
	Index     Classifier
	Preloader Preloader
	Options   Options
	Logger    *logrus.Logger

	mu   sync.RWMutex
	last *manifest.Document
}

func (r *Runner) logger() *logrus.Logger {
	if r.Logger == nil {
		r.Logger = logging.Discard()
	}
	return r.Logger
}

// LoadPackages 读取锁文件。缺失或无法解析时记录日志并视为没有依赖。
func (r *Runner) LoadPackages() []lockfile.Package {
	lock, err := lockfile.Load(r.Options.LockFile)
	if err != nil {
		entry := r.logger().WithField("lock_file", r.Options.LockFile).WithError(err)
		if errors.Is(err, lockfile.ErrNotLocked) {
			entry.Info("no lock file, nothing to collect")
		} else {
			entry.Error("lock file unreadable, treating as empty")
		}
		return nil
	}
	return lock.Packages()
}

// Collect 按锁文件顺序逐个分类。下载失败时返回已收集的条目和该错误，调用方应中止。
func (r *Runner) Collect(ctx context.Context, pkgs []lockfile.Package) ([]cache.Entry, error) {
	entries := make([]cache.Entry, 0, len(pkgs))
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		entry, ok, err := r.Index.Classify(ctx, pkg)
		if err != nil {
			r.logger().WithFields(logging.PackageFields(pkg, "collect")).WithError(err).Error("collect failed")
			return entries, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Split 把条目分成缓存归档与本地路径两组，保持原有顺序。
func Split(entries []cache.Entry) (cached, local []cache.Entry) {
	for _, entry := range entries {
		switch entry.Kind {
		case cache.KindCached:
			cached = append(cached, entry)
		case cache.KindLocalPath:
			local = append(local, entry)
		}
	}
	return cached, local
}

// Run 完成一次运行。preload 失败只记录在 Report 中，不影响已写出的清单。
func (r *Runner) Run(ctx context.Context) (Report, error) {
	pkgs := r.LoadPackages()
	report := Report{Packages: len(pkgs)}

	entries, err := r.Collect(ctx, pkgs)
	report.Entries = entries
	if err != nil {
		return report, err
	}

	projectName := r.Options.ProjectName
	if projectName == "" {
		projectName = lockfile.ProjectName(r.Options.LockFile)
	}
	report.Document = manifest.Build(projectName, entries)
	if r.Options.OutputPath != "" {
		if err := manifest.Write(r.Options.OutputPath, report.Document); err != nil {
			return report, err
		}
	}
	r.remember(report.Document)

	cached, local := Split(entries)
	r.logger().WithField("cached", len(cached)).
		WithField("local", len(local)).
		WithField("output", r.Options.OutputPath).
		Info("manifest generated")

	if !r.Options.Preload || r.Preloader == nil {
		return report, nil
	}
	result, err := r.Preloader.Run(ctx, cached)
	report.Preload = result
	if err != nil {
		r.logger().WithError(err).Warn("preload incomplete")
	}
	return report, nil
}

// Last 返回最近一次成功生成的清单。
func (r *Runner) Last() (manifest.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return manifest.Document{}, false
	}
	return *r.last, true
}

func (r *Runner) remember(doc manifest.Document) {
	r.mu.Lock()
	r.last = &doc
	r.mu.Unlock()
}
