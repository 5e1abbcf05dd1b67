//go:build !arm64

package writeprobe

// amd64 keeps the instruction cache coherent with stores on its own.
func cacheflush(buf []byte) {}
