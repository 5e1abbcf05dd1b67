//go:build arm64 && !cgo

package writeprobe

// A probe that lands in executable memory has to clean the instruction cache
// after putting the original word back, and on arm64 that takes a C compiler.
// Install a C compiler and build with CGO_ENABLED=1.
func cacheflush(buf []byte) {
	arm64_requires_cgo_for_instruction_cache_flushing()
}
