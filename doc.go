// Probe which parts of the address space are really writable
//
// Page permissions say what the kernel promised. This package checks what it
// actually enforces: it reads the process's own memory layout, tries a
// word-sized write at three points in every region (start, middle, near the
// end), restores whatever was there, and decides per region whether the
// outcome agrees with the permissions.
//
// Faults are caught in-process with [runtime/debug.SetPanicOnFault], so a
// denied write becomes an outcome instead of a crash.
//
// Limitations:
//   - The memory layout comes from /proc/self/maps, so only Linux (or
//     something that emulates it) produces a useful table
//   - Writable regions are really written to. The original word is put back
//     right away, but another thread touching the same word in between will
//     see the sentinel
//   - arm64 needs cgo to flush the instruction cache after writing to
//     executable memory
//   - Probably some bugs I don't know about.
package writeprobe
