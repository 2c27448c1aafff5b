package pool

import (
	"log/slog"
	"os"
	"unsafe"

	"github.com/orizon-lang/arenapool/internal/diag"
)

// CleanupHandler is a callback that Destroy runs once, in most-recently
// registered order. Data is whatever payload the handler needs; when it was
// obtained via CleanupAdd with dataSize > 0 it points at a pool-allocated
// buffer the caller is free to write POD fields into.
type CleanupHandler struct {
	Handler func(data unsafe.Pointer)
	Data    unsafe.Pointer

	next *CleanupHandler
	// isFileClose marks handlers added via CleanupAddCloseFD, so
	// RunCleanupFile knows it is safe to reinterpret Data as
	// *FileCleanupData. CleanupAddCloseAndDeleteFile deliberately does not
	// set this: RunCleanupFile only ever matches the close-only variant.
	isFileClose bool
}

// CleanupAdd registers a new cleanup handler on the pool and returns it so
// the caller can set Handler (and, for dataSize == 0, Data). When dataSize
// is positive, a zeroed buffer of that size is allocated from the pool and
// assigned to Data up front.
func (p *Pool) CleanupAdd(dataSize int) (*CleanupHandler, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}

	node := &CleanupHandler{next: p.cleanup}

	if dataSize > 0 {
		ptr, err := p.Calloc(dataSize)
		if err != nil {
			return nil, err
		}

		node.Data = ptr
	}

	p.cleanup = node

	return node, nil
}

// FileCleanupData is the payload for CleanupAddCloseFD and
// CleanupAddCloseAndDeleteFile. It is an ordinary Go value, not pool-backed:
// File and Log hold pointers the garbage collector must be able to see,
// which rules out placing it inside a pool block's raw byte buffer.
type FileCleanupData struct {
	FD   int
	Name string
	File *os.File
	Log  *slog.Logger
}

// CleanupAddCloseFD registers a handler that closes data.File at Destroy
// time (or when RunCleanupFile matches data.FD first). Failures are logged
// to data.Log, if set, rather than returned: cleanup handlers run during
// teardown, where there is no caller left to hand an error to.
func (p *Pool) CleanupAddCloseFD(data *FileCleanupData) (*CleanupHandler, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}

	node := &CleanupHandler{
		Handler:     CloseFD,
		Data:        unsafe.Pointer(data),
		next:        p.cleanup,
		isFileClose: true,
	}
	p.cleanup = node

	return node, nil
}

// CleanupAddCloseAndDeleteFile registers a handler that closes data.File and
// then removes data.Name from disk at Destroy time. It is never matched by
// RunCleanupFile, only by Destroy: an early close-triggered-by-fd-reuse is
// meant for descriptors whose backing file should still exist afterward.
func (p *Pool) CleanupAddCloseAndDeleteFile(data *FileCleanupData) (*CleanupHandler, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}

	node := &CleanupHandler{
		Handler: CloseAndDeleteFile,
		Data:    unsafe.Pointer(data),
		next:    p.cleanup,
	}
	p.cleanup = node

	return node, nil
}

// RunCleanupFile finds the first still-pending CleanupAddCloseFD handler
// whose FileCleanupData.FD equals fd, runs it immediately, and marks it done
// so Destroy does not run it again. It reports whether a match was found.
// This lets a long-lived pool close and drop a descriptor the moment its
// logical lifetime ends, without waiting for the whole pool to be reset or
// destroyed.
func (p *Pool) RunCleanupFile(fd int) bool {
	for c := p.cleanup; c != nil; c = c.next {
		if !c.isFileClose || c.Handler == nil {
			continue
		}

		data := (*FileCleanupData)(c.Data)
		if data.FD != fd {
			continue
		}

		c.Handler(c.Data)
		c.Handler = nil

		return true
	}

	return false
}

// CloseFD is the cleanup handler installed by CleanupAddCloseFD.
func CloseFD(data unsafe.Pointer) {
	fcd := (*FileCleanupData)(data)
	if fcd.File == nil {
		return
	}

	if err := fcd.File.Close(); err != nil && fcd.Log != nil {
		fcd.Log.Error("pool cleanup: close file failed", "fault", diag.CleanupFailed("CloseFD", err).Error())
	}
}

// CloseAndDeleteFile is the cleanup handler installed by
// CleanupAddCloseAndDeleteFile: it closes the descriptor and then unlinks
// the backing path.
func CloseAndDeleteFile(data unsafe.Pointer) {
	fcd := (*FileCleanupData)(data)

	CloseFD(data)

	if fcd.Name == "" {
		return
	}

	if err := os.Remove(fcd.Name); err != nil && fcd.Log != nil {
		fcd.Log.Error("pool cleanup: delete file failed", "fault", diag.CleanupFailed("CloseAndDeleteFile", err).Error())
	}
}
