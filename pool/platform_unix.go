//go:build unix

package pool

import "golang.org/x/sys/unix"

func detectPageSize() int {
	if sz := unix.Getpagesize(); sz > 0 {
		return sz
	}

	return 4096
}
