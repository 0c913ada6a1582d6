//go:build darwin || freebsd || (linux && (amd64 || arm64 || loong64)) || netbsd

package glutbridge

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// NewCCallback exports fn as a C function pointer. The pointer stays
// valid for the process lifetime.
func NewCCallback(fn any) (_ret uintptr, _err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("unable to create a C callback for %T: %v", fn, r)
		}
	}()
	return purego.NewCallback(fn), nil
}
