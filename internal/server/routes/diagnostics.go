package routes

import (
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v3"
	"zombiezen.com/go/nix"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/manifest"
	"github.com/any-hub/nixify/internal/nixhash"
	"github.com/any-hub/nixify/internal/version"
)

// Probe 判断 store 路径是否存在，由 nixstore.CLI 实现。
type Probe interface {
	Exists(path string) bool
}

// DocumentSource 返回最近一次生成的清单，由 pipeline.Runner 实现。
type DocumentSource interface {
	Last() (manifest.Document, bool)
}

// Deps 汇总诊断接口所需的依赖。
type Deps struct {
	StoreRoot string
	Probe     Probe
	Documents DocumentSource
}

// 与 nix-store --add-fixed 支持的算法保持一致，十六进制长度用于校验摘要。
var digestHexLen = map[string]int{
	"md5":    32,
	"sha1":   40,
	"sha256": 64,
	"sha512": 128,
}

// RegisterDiagnosticsRoutes 暴露 /-/storepath、/-/entries 与 /-/version。
func RegisterDiagnosticsRoutes(app *fiber.App, deps Deps) {
	if app == nil {
		return
	}
	storeRoot := deps.StoreRoot
	if storeRoot == "" {
		storeRoot = nixhash.DefaultStoreRoot
	}

	app.Get("/-/storepath", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Query("name"))
		digest := strings.ToLower(strings.TrimSpace(c.Query("sha256")))
		algo := strings.ToLower(strings.TrimSpace(c.Query("algo", "sha256")))

		if name == "" || name != cache.SafeStoreName(name) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_name"})
		}
		size, ok := digestHexLen[algo]
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported_algo"})
		}
		if _, err := hex.DecodeString(digest); err != nil || len(digest) != size {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_digest"})
		}

		storePath, err := nix.ParseStorePath(nixhash.FixedOutputPath(name, algo, digest, storeRoot))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_store_path"})
		}
		payload := storePathPayload{
			Path:   string(storePath),
			Digest: storePath.Digest(),
			Name:   storePath.Name(),
		}
		if deps.Probe != nil {
			payload.Exists = deps.Probe.Exists(payload.Path)
		}
		return c.JSON(payload)
	})

	app.Get("/-/entries", func(c fiber.Ctx) error {
		if deps.Documents == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_collection"})
		}
		doc, ok := deps.Documents.Last()
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_collection"})
		}
		return c.JSON(doc)
	})

	app.Get("/-/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version": version.Version,
			"commit":  version.Commit,
		})
	})
}

type storePathPayload struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}
