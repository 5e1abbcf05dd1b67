package writeprobe

import (
	"reflect"
	"runtime"
	"unsafe"
)

// Landmark is a named address, used to tie regions back to something
// recognizable.
type Landmark struct {
	Name string
	Addr uintptr
}

var (
	landmarkData = [4]uintptr{1, 2, 3, 4}
	landmarkBSS  [4]uintptr
)

// Landmarks returns the addresses of a few objects whose placement in memory
// is known: code, initialized and zeroed globals, the heap and a goroutine
// stack.
func Landmarks() []Landmark {
	heap := new([4]uintptr)
	var stack uintptr

	marks := []Landmark{
		{Name: "go:text", Addr: reflect.ValueOf(Landmarks).Pointer()},
		{Name: "go:data", Addr: uintptr(unsafe.Pointer(&landmarkData))},
		{Name: "go:bss", Addr: uintptr(unsafe.Pointer(&landmarkBSS))},
		{Name: "go:heap", Addr: uintptr(unsafe.Pointer(heap))},
		{Name: "go:stack", Addr: uintptr(unsafe.Pointer(&stack))},
	}

	runtime.KeepAlive(heap)
	return marks
}

// Annotate adds the name of every landmark to the Marks of the region that
// contains it. Landmarks outside t are ignored.
func Annotate(t RegionTable, marks ...Landmark) {
	for _, m := range marks {
		if i := t.Find(uint64(m.Addr)); i >= 0 {
			t[i].Marks = append(t[i].Marks, m.Name)
		}
	}
}

func sliceAddr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}
