package writeprobe

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"unsafe"
)

// sentinel is the value written by a probe.
const sentinel = uintptr(42)

// ErrFault is returned by Peek when the read faults.
var ErrFault = errors.New("memory fault")

// ReadbackError means a write didn't fault but reading the word back returned
// something other than what was written. The probe can't be trusted after
// that.
type ReadbackError struct {
	Addr uintptr
	Want uintptr
	Got  uintptr
}

func (e *ReadbackError) Error() string {
	return fmt.Sprintf("readback mismatch at %#x: wrote %#x, read %#x", e.Addr, e.Want, e.Got)
}

// store is the write used by probeWord.
var store = storeWord

// barrier serializes everything that runs with panic-on-fault enabled.
var barrier sync.Mutex

// withFaultBarrier runs fn with memory faults turned into panics and reports
// whether fn faulted. The previous panic-on-fault setting is always restored.
//
// Any other panic from fn is passed through.
func withFaultBarrier(fn func()) (faulted bool) {
	barrier.Lock()
	defer barrier.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(runtime.Error); !ok {
			panic(r)
		}
		faulted = true
	}()

	fn()
	return false
}

// Probe writes a sentinel word at addr, checks that it reads back and then
// puts the original word back. A fault at any point means the write was
// denied.
//
// A *ReadbackError is returned if the write went through but didn't stick.
func Probe(addr uintptr) (Outcome, error) {
	return probeWord(addr, false)
}

func probeWord(addr uintptr, exec bool) (Outcome, error) {
	var old, got uintptr

	faulted := withFaultBarrier(func() {
		old = loadWord(addr)
		store(addr, sentinel)
		got = loadWord(addr)
		if got != sentinel {
			return
		}
		storeWord(addr, old)
		if exec {
			cacheflush(unsafe.Slice((*byte)(unsafe.Pointer(addr)), wordSize))
		}
	})
	if faulted {
		return WriteDenied, nil
	}

	if got != sentinel {
		return WriteDenied, &ReadbackError{Addr: addr, Want: sentinel, Got: got}
	}
	return WriteSucceeded, nil
}

// Peek copies n bytes starting at addr. ErrFault is returned if any of them
// can't be read.
func Peek(addr uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	faulted := withFaultBarrier(func() {
		// Not copy(), a fault inside memmove isn't guaranteed to be
		// recoverable.
		for i := range buf {
			buf[i] = loadByte(addr + uintptr(i))
		}
	})
	if faulted {
		return nil, fmt.Errorf("reading %d bytes at %#x: %w", n, addr, ErrFault)
	}
	return buf, nil
}

// The raw accessors stay out of line so the compiler can't fold the readback
// into the store before it, and out of reach of the race detector and
// checkptr, which would object to arbitrary addresses.

//go:noinline
//go:norace
//go:nocheckptr
func loadWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

//go:noinline
//go:norace
//go:nocheckptr
func storeWord(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

//go:noinline
//go:norace
//go:nocheckptr
func loadByte(addr uintptr) byte {
	return *(*byte)(unsafe.Pointer(addr))
}
