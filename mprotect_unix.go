//go:build unix

package writeprobe

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mprotectNone = unix.PROT_NONE
	mprotectR    = unix.PROT_READ
	mprotectRW   = unix.PROT_READ | unix.PROT_WRITE
)

// mprotect changes the protection of every page that buf touches.
func mprotect(buf []byte, flags int) error {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))

	pageSize := unix.Getpagesize()

	// Round address down to page boundary.
	// Example: addr=4196 with pageSize=4096 becomes 4096.
	pageStart := addr - (addr % uintptr(pageSize))

	// Round up to cover complete pages.
	regionSize := (int(addr-pageStart) + cap(buf) + pageSize - 1) / pageSize * pageSize

	region := unsafe.Slice((*byte)(unsafe.Pointer(pageStart)), regionSize)
	return unix.Mprotect(region, flags)
}

// mmap maps size bytes (rounded up to whole pages) of anonymous memory.
func mmap(size int, prot int) ([]byte, error) {
	pageSize := unix.Getpagesize()
	size = (size + pageSize - 1) / pageSize * pageSize

	return unix.Mmap(-1, 0, size, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func munmap(buf []byte) error {
	return unix.Munmap(buf)
}
