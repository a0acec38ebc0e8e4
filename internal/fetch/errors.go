package fetch

import (
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

// Phase 标识 Refetch 失败时所处的步骤。
type Phase string

const (
	PhaseStage    Phase = "stage"
	PhaseDownload Phase = "download"
	PhaseRelocate Phase = "relocate"
	PhaseDigest   Phase = "digest"
)

// Error 描述一次下载失败。Unwrap 返回带错误码的平台错误，
// 因此 platformerrors.GetCode 与 errors.Is 都能穿透到原始原因。
type Error struct {
	Package string
	Phase   Phase
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Package, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(pkg string, phase Phase, err error) *Error {
	code := platformerrors.CodeExecutionFailed
	if phase == PhaseDownload {
		code = platformerrors.CodeNetwork
	}
	wrapped := platformerrors.Wrap(err, code, string(phase)+" failed")
	wrapped = platformerrors.WithContext(wrapped, "package", pkg)
	wrapped = platformerrors.WithContext(wrapped, "phase", string(phase))
	return &Error{Package: pkg, Phase: phase, Err: wrapped}
}
