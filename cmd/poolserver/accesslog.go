package main

import (
	"log/slog"
	"time"
	"unsafe"

	"github.com/orizon-lang/arenapool/pool"
)

// accessRecord mirrors the layout accessLogger stores in its backing pool.List
// part: fixed-size fields only, since it is copied byte-for-byte into
// pool-allocated storage rather than kept as a Go value with a string field.
type accessRecord struct {
	method   [8]byte
	path     [64]byte
	status   int32
	bytes    int64
	duration time.Duration
}

func putAccessRecord(dst unsafe.Pointer, method, path string, status int, bytes int64, dur time.Duration) {
	rec := (*accessRecord)(dst)
	*rec = accessRecord{status: int32(status), bytes: bytes, duration: dur}
	copy(rec.method[:], method)
	copy(rec.path[:], path)
}

// accessLogger owns one long-lived pool.Pool and pool.List, fed exclusively
// by its own goroutine over a channel. This is the concurrency model §5 of
// the spec calls for: a channel, not a mutex, synchronizes access to the
// list, so it is never touched from two goroutines.
type accessLogger struct {
	records chan accessRecordInput
	done    chan struct{}
}

type accessRecordInput struct {
	method   string
	path     string
	status   int
	bytes    int64
	duration time.Duration
}

func newAccessLogger(log *slog.Logger) (*accessLogger, error) {
	p, err := pool.New(16*pool.PageSize(), log)
	if err != nil {
		return nil, err
	}

	list, err := pool.NewList(p, 256, int(unsafe.Sizeof(accessRecord{})))
	if err != nil {
		return nil, err
	}

	al := &accessLogger{
		records: make(chan accessRecordInput, 256),
		done:    make(chan struct{}),
	}

	go al.run(p, list, log)

	return al, nil
}

func (al *accessLogger) run(p *pool.Pool, list *pool.List, log *slog.Logger) {
	defer close(al.done)
	defer p.Destroy()

	for rec := range al.records {
		slot, err := list.Push()
		if err != nil {
			if log != nil {
				log.Error("access log: list push failed", "error", err)
			}

			continue
		}

		putAccessRecord(slot, rec.method, rec.path, rec.status, rec.bytes, rec.duration)
	}
}

// log enqueues a record without ever blocking the calling request
// goroutine: when the channel is full, the record is dropped.
func (al *accessLogger) log(method, path string, status int, bytes int64, dur time.Duration) {
	select {
	case al.records <- accessRecordInput{method: method, path: path, status: status, bytes: bytes, duration: dur}:
	default:
		// Drop under sustained backpressure rather than block the request path.
	}
}

func (al *accessLogger) Close() {
	close(al.records)
	<-al.done
}
