package preload

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/logging"
	"github.com/any-hub/nixify/internal/nixhash"
)

// DefaultBatchSize 限制单次 nix-store 调用的参数数量。
const DefaultBatchSize = 100

// hashAlgo 是 Composer 缓存条目统一使用的固定输出哈希算法。
const hashAlgo = "sha256"

// Probe 判断 store 路径是否已存在。
type Probe interface {
	Exists(path string) bool
}

// Registrar 把一批暂存文件注册为固定输出路径。
type Registrar interface {
	AddFixed(ctx context.Context, algo string, paths []string) error
}

// Options 控制 preload 行为，零值使用默认 store 根目录和批大小。
type Options struct {
	StoreRoot string
	BatchSize int
}

// Result 汇总一次 preload。Preloaded 只统计成功批次中的条目。
type Result struct {
	Preloaded int
	Skipped   int
	Staged    int
	Batches   int
	Err       error
}

// Preloader 负责暂存缓存文件并分批提交给 Registrar。
type Preloader struct {
	store     cache.Store
	probe     Probe
	registrar Registrar
	storeRoot string
	batchSize int
	logger    *logrus.Logger
}

// New 构造 Preloader。
func New(store cache.Store, probe Probe, registrar Registrar, opts Options, logger *logrus.Logger) *Preloader {
	if opts.StoreRoot == "" {
		opts.StoreRoot = nixhash.DefaultStoreRoot
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Preloader{
		store:     store,
		probe:     probe,
		registrar: registrar,
		storeRoot: opts.StoreRoot,
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

// StorePath 返回条目注册后对应的固定输出路径。
func (p *Preloader) StorePath(entry cache.Entry) string {
	return nixhash.FixedOutputPath(entry.Name, hashAlgo, entry.SHA256, p.storeRoot)
}

// Run 暂存尚未进入 store 的条目并按批注册。第一个失败的批次会终止后续批次，
// 已成功的批次不会回滚。暂存目录在所有路径上都会被删除。
func (p *Preloader) Run(ctx context.Context, entries []cache.Entry) (Result, error) {
	var result Result

	pending := make([]cache.Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Cached() {
			continue
		}
		storePath := p.StorePath(entry)
		if p.probe.Exists(storePath) {
			result.Skipped++
			p.logger.WithFields(logging.EntryFields(entry.Name, entry.CacheFile, storePath)).
				Debug("already in store")
			continue
		}
		pending = append(pending, entry)
	}
	if len(pending) == 0 {
		return result, nil
	}

	staging, err := p.store.Stage()
	if err != nil {
		return result, err
	}
	stagingDir := staging.Dir
	defer func() {
		if cerr := staging.Close(); cerr != nil {
			p.logger.WithError(cerr).WithField("dir", stagingDir).Warn("remove staging dir failed")
		}
	}()

	staged := p.stage(ctx, stagingDir, pending)
	result.Staged = len(staged)
	if len(staged) == 0 {
		return result, nil
	}

	for start := 0; start < len(staged); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			result.Err = err
			break
		}
		end := min(start+p.batchSize, len(staged))
		batch := staged[start:end]

		result.Batches++
		if err := p.registrar.AddFixed(ctx, hashAlgo, batch); err != nil {
			result.Err = err
			p.logger.WithError(err).
				WithField("batch", result.Batches).
				WithField("paths", len(batch)).
				WithField("output", commandOutput(err)).
				Error("nix-store --add-fixed failed")
			break
		}
		result.Preloaded += len(batch)
	}

	p.logger.WithField("staged", result.Staged).
		WithField("skipped", result.Skipped).
		WithField("batches", result.Batches).
		Infof("Preloaded %d packages", result.Preloaded)
	return result, result.Err
}

// stage 复制条目到暂存目录，复制失败时记录错误并停止暂存，已暂存的文件保留。
func (p *Preloader) stage(ctx context.Context, dir string, entries []cache.Entry) []string {
	staged := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		fields := logging.EntryFields(entry.Name, entry.CacheFile, "")

		src, err := p.store.Path(entry.CacheFile)
		if err == nil {
			dst := filepath.Join(dir, entry.Name)
			if err = cache.CopyFile(ctx, src, dst); err == nil {
				seen[entry.Name] = struct{}{}
				staged = append(staged, dst)
				continue
			}
		}
		p.logger.WithFields(fields).WithError(err).Error("stage cache file failed, stopping")
		break
	}
	return staged
}
