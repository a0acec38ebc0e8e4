package preload

import (
	"errors"

	"github.com/any-hub/nixify/internal/nixstore"
)

// commandOutput 提取 nix-store 捕获的输出，便于在日志中定位失败原因。
func commandOutput(err error) string {
	var cmdErr *nixstore.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Output
	}
	return ""
}
