//go:build windows

package pool

// Windows does not expose a single canonical "page size" the way Unix's
// getpagesize(2) does for allocation-granularity purposes here; 4KiB matches
// the x86/amd64 page size Windows actually uses for process memory.
func detectPageSize() int {
	return 4096
}
