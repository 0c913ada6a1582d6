package glutbridge

import (
	"unsafe"
)

// goString copies a NUL-terminated C string.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	start := unsafe.Pointer(p)
	n := 0
	for *(*byte)(unsafe.Add(start, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(start), n))
}

// goStrings copies an (int *argc, char **argv) pair.
func goStrings(argcp uintptr, argv uintptr) []string {
	if argcp == 0 || argv == 0 {
		return nil
	}
	argc := *(*int32)(unsafe.Pointer(argcp))
	if argc <= 0 {
		return nil
	}
	ptrs := unsafe.Slice((*uintptr)(unsafe.Pointer(argv)), int(argc))
	result := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		result = append(result, goString(p))
	}
	return result
}
