//go:build unix

package writeprobe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pboyd/malloc"
	"golang.org/x/sys/unix"
)

// Controls are mappings with known protections, made so that a run always
// has regions whose verdicts are certain. If the writable or read-only
// control fails, the probe itself is broken.
type Controls struct {
	// Writable is read/write memory.
	Writable []byte
	// ReadOnly was filled and then made read-only.
	ReadOnly []byte
	// Guard can't be accessed at all.
	Guard []byte

	rw *controlArena
	ro *controlArena
}

// NewControls maps the three control regions. Call Close to release them.
//
// Nothing is left mapped if it fails.
func NewControls() (*Controls, error) {
	c := &Controls{}
	if err := c.open(unix.Getpagesize(), mmap); err != nil {
		return nil, err
	}
	return c, nil
}

// open sets up each control in turn, with mapGuard mapping the guard page.
// Whatever was already set up is released if a later step fails.
func (c *Controls) open(size int, mapGuard func(size, prot int) ([]byte, error)) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, c.Close())
		}
	}()

	c.rw, err = newControlArena(size)
	if err != nil {
		return fmt.Errorf("writable control: %w", err)
	}
	c.Writable, err = c.rw.Allocate(size)
	if err != nil {
		return fmt.Errorf("writable control: %w", err)
	}

	c.ro, err = newControlArena(size)
	if err != nil {
		return fmt.Errorf("read-only control: %w", err)
	}
	c.ReadOnly, err = c.ro.Allocate(size)
	if err != nil {
		return fmt.Errorf("read-only control: %w", err)
	}
	for i := range c.ReadOnly {
		c.ReadOnly[i] = byte(i)
	}
	if err := c.ro.Protect(c.ReadOnly, mprotectR); err != nil {
		return fmt.Errorf("read-only control: %w", err)
	}

	c.Guard, err = mapGuard(size, mprotectNone)
	if err != nil {
		return fmt.Errorf("guard control: %w", err)
	}

	return nil
}

// Landmarks names the start of each control.
func (c *Controls) Landmarks() []Landmark {
	return []Landmark{
		{Name: "control:rw", Addr: sliceAddr(c.Writable)},
		{Name: "control:ro", Addr: sliceAddr(c.ReadOnly)},
		{Name: "control:none", Addr: sliceAddr(c.Guard)},
	}
}

// Close releases every control.
func (c *Controls) Close() error {
	var errs []error

	if c.ReadOnly != nil {
		if err := c.ro.Protect(c.ReadOnly, mprotectRW); err != nil {
			errs = append(errs, fmt.Errorf("read-only control: %w", err))
		} else {
			c.ro.Free(c.ReadOnly)
		}
		c.ReadOnly = nil
	}

	if c.Writable != nil {
		c.rw.Free(c.Writable)
		c.Writable = nil
	}

	if c.Guard != nil {
		if err := munmap(c.Guard); err != nil {
			errs = append(errs, fmt.Errorf("guard control: %w", err))
		}
		c.Guard = nil
	}

	return errors.Join(errs...)
}

// controlArena is a malloc arena in its own mapping, so that changing its
// protection doesn't touch anything else.
type controlArena struct {
	*malloc.Arena
	protect func(int) error
	mu      sync.Mutex
}

func newControlArena(size int) (*controlArena, error) {
	// Read/write is the backend's default protection.
	be := malloc.MmapBackend()

	a := &controlArena{}
	if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
		a.protect = protBE.Protect
	}

	a.Arena = malloc.NewArena(uint64(size), malloc.Backend(be))
	if a.Arena == nil {
		return nil, errors.New("unable to initialize arena")
	}
	return a, nil
}

func (a *controlArena) Allocate(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return malloc.MallocSlice[byte](a.Arena, size)
}

func (a *controlArena) Free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	malloc.FreeSlice(a.Arena, buf)
}

// Protect changes the protection of the whole arena if the backend supports
// it, or just the pages under buf if it doesn't.
func (a *controlArena) Protect(buf []byte, flags int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.protect != nil {
		return a.protect(flags)
	}
	return mprotect(buf, flags)
}
