// Package diag provides a consistent error shape for failures recovered at a
// service boundary, where the original error has already lost its stack and
// only a category, a code, and a little context remain useful to a log line.
package diag

import (
	"fmt"
	"runtime"
)

// Category groups faults by where they came from, so a log aggregator can
// alert on "memory" spikes separately from "validation" noise.
type Category string

const (
	CategoryMemory     Category = "MEMORY"
	CategoryBounds     Category = "BOUNDS"
	CategoryValidation Category = "VALIDATION"
	CategoryCleanup    Category = "CLEANUP"
	CategoryPanic      Category = "PANIC"
)

// Fault is a categorized error with the name of the function that raised it.
type Fault struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]any
	Caller   string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", f.Category, f.Code, f.Message, f.Caller)
}

// New creates a Fault, capturing the name of its caller's caller (i.e. the
// function that invoked one of this package's constructors).
func New(category Category, code, message string, context map[string]any) *Fault {
	caller := "unknown"

	if pc, _, _, ok := runtime.Caller(2); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Fault{Category: category, Code: code, Message: message, Context: context, Caller: caller}
}

// PoolExhausted reports that memory of the requested size could not be
// obtained, such as a request pool that pool.New refused to create.
func PoolExhausted(requested int) *Fault {
	return New(CategoryMemory, "POOL_EXHAUSTED",
		fmt.Sprintf("could not satisfy a %d-byte allocation", requested),
		map[string]any{"requested": requested})
}

// IndexOutOfBounds reports an out-of-range element access into an Array or
// List part.
func IndexOutOfBounds(index, length int) *Fault {
	return New(CategoryBounds, "INDEX_OUT_OF_BOUNDS",
		fmt.Sprintf("index %d out of bounds for length %d", index, length),
		map[string]any{"index": index, "length": length})
}

// InvalidSize reports a caller-supplied size or count that failed
// validation (negative, zero where a minimum of one is required, ...).
func InvalidSize(size int, context string) *Fault {
	return New(CategoryValidation, "INVALID_SIZE",
		fmt.Sprintf("invalid size %d in %s", size, context),
		map[string]any{"size": size, "context": context})
}

// CleanupFailed reports a cleanup handler (e.g. CloseFD) that returned or
// logged an error during teardown.
func CleanupFailed(name string, cause error) *Fault {
	return New(CategoryCleanup, "CLEANUP_FAILED",
		fmt.Sprintf("cleanup handler %s failed: %v", name, cause),
		map[string]any{"handler": name})
}

// Recovered wraps a value captured from recover() as a Fault, for handlers
// that want to log a structured panic instead of a bare interface{}.
func Recovered(r any) *Fault {
	return New(CategoryPanic, "RECOVERED_PANIC", fmt.Sprintf("%v", r), nil)
}
