package launcher

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// cArgv is a NULL-terminated C argument vector living in an anonymous
// mapping, so the garbage collector neither moves nor frees it while
// native code holds the pointers.
type cArgv struct {
	mem  []byte
	argc int
}

func newCArgv(args []string) (*cArgv, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments")
	}
	ptrSize := int(unsafe.Sizeof(uintptr(0)))
	tableSize := (len(args) + 1) * ptrSize
	size := tableSize
	for idx, arg := range args {
		if strings.IndexByte(arg, 0) >= 0 {
			return nil, fmt.Errorf("argument #%d %q contains a NUL byte", idx, arg)
		}
		size += len(arg) + 1
	}

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("unable to map %d bytes for the argument vector: %w", size, err)
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	table := unsafe.Slice((*uintptr)(unsafe.Pointer(unsafe.SliceData(mem))), len(args)+1)
	offset := tableSize
	for idx, arg := range args {
		copy(mem[offset:], arg)
		mem[offset+len(arg)] = 0
		table[idx] = base + uintptr(offset)
		offset += len(arg) + 1
	}
	table[len(args)] = 0

	return &cArgv{mem: mem, argc: len(args)}, nil
}

func (a *cArgv) Argc() int {
	return a.argc
}

// Argv returns the address of the pointer table (char **).
func (a *cArgv) Argv() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(a.mem)))
}

// Strings reads the vector back.
func (a *cArgv) Strings() []string {
	base := a.Argv()
	table := unsafe.Slice((*uintptr)(unsafe.Pointer(unsafe.SliceData(a.mem))), a.argc+1)
	result := make([]string, 0, a.argc)
	for _, p := range table[:a.argc] {
		start := int(p - base)
		end := start
		for a.mem[end] != 0 {
			end++
		}
		result = append(result, string(a.mem[start:end]))
	}
	return result
}

func (a *cArgv) Close() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}
