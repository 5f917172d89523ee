//go:build (darwin || linux) && !noffmpeg

// Shared utilities for purego-based providers.

package avplay

import (
	"os"
	"path/filepath"
	"runtime"
	"unsafe"
)

// goStringFromPtr converts a short C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	return goStringFromPtrN(ptr, 1024)
}

// goStringFromPtrN converts a C string pointer to a Go string, reading at
// most limit bytes.
func goStringFromPtrN(ptr uintptr, limit int) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for length < limit {
		if *(*byte)(unsafe.Add(p, length)) == 0 {
			break
		}
		length++
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// findSourceRoot returns the directory holding this source file, which is the
// repository root in development checkouts.
func findSourceRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(file)
}

// findModuleRoot walks up the directory tree from the current working directory
// to find the module root (directory containing go.mod).
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
