//go:build linux || darwin || freebsd

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Column blocks are fetched out of order; readahead only wastes pages.
	_ = unix.Madvise(data, unix.MADV_RANDOM)
	return data, nil
}

func unmap(b []byte) error {
	return unix.Munmap(b)
}
