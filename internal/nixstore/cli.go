package nixstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/exec"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/logging"
)

// Binary 是注册命令的可执行文件名，从 PATH 解析。
const Binary = "nix-store"

// CLI 通过 nix-store 可执行文件操作本机 store。
type CLI struct {
	executor exec.Executor
	binary   string
	logger   *logrus.Logger
}

// NewCLI 构造 CLI；executor 为空时使用 exec.New()。
func NewCLI(executor exec.Executor, logger *logrus.Logger) *CLI {
	if executor == nil {
		executor = exec.New()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CLI{executor: executor, binary: Binary, logger: logger}
}

// AddFixed 以参数向量执行 `nix-store --add-fixed <algo> <paths...>`，不经过 shell。
// 非零退出返回 *CommandError，其中保留合并后的输出。
func (c *CLI) AddFixed(ctx context.Context, algo string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"--add-fixed", algo}, paths...)

	c.logger.WithField("command", QuoteArgs(append([]string{c.binary}, args...))).
		WithField("paths", len(paths)).
		Debug("registering fixed-output paths")

	runner := exec.NewWrapper(c.executor.Clone(), c.binary)
	result, err := runner.WithContext(ctx).Run(args...)
	if err != nil {
		return newCommandError(append([]string{c.binary}, args...), result, err)
	}

	c.logger.WithField("registered", len(strings.Fields(result.Stdout))).
		Debug("nix-store finished")
	return nil
}

// Exists 报告 store 路径是否已存在。使用 Lstat，悬空符号链接也视为存在。
func (c *CLI) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Available 报告 nix-store 是否可以从 PATH 找到。
func (c *CLI) Available() bool {
	_, err := osexec.LookPath(c.binary)
	return err == nil
}

// CommandError 描述一次失败的 nix-store 调用。
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with %d: %v", QuoteArgs(e.Args), e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func newCommandError(args []string, result *exec.Result, err error) *CommandError {
	cmdErr := &CommandError{Args: args, ExitCode: -1}

	var execErr *exec.ExecError
	if errors.As(err, &execErr) {
		cmdErr.ExitCode = execErr.ExitCode
		cmdErr.Output = execErr.Stdout + execErr.Stderr
	}
	if result != nil {
		cmdErr.ExitCode = result.ExitCode
		cmdErr.Output = result.Combined
	}

	wrapped := platformerrors.Wrap(err, platformerrors.CodeExecutionFailed, args[0]+" failed")
	cmdErr.Err = platformerrors.WithContext(wrapped, "exit_code", cmdErr.ExitCode)
	return cmdErr
}

// QuoteArgs 把参数渲染为可以粘贴到 POSIX shell 的形式，仅用于日志。
func QuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.IndexFunc(arg, needsQuote) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("@%+=:,./_-", r):
		return false
	}
	return true
}
