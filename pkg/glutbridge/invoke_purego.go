//go:build darwin || freebsd || linux || netbsd

package glutbridge

import (
	"github.com/ebitengine/purego"
)

// CallC calls an engine-provided C function.
func CallC(cb Callback, args ...uintptr) {
	if cb == 0 {
		return
	}
	purego.SyscallN(uintptr(cb), args...)
}
