//go:build !(darwin || freebsd || (linux && (amd64 || arm64 || loong64)) || netbsd)

package glutbridge

import (
	"fmt"
	"runtime"
)

func NewCCallback(fn any) (uintptr, error) {
	return 0, fmt.Errorf("C callbacks are not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
