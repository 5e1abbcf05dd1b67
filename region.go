package writeprobe

import (
	"fmt"
	"sort"
	"strings"
	"unsafe"
)

// ProbePoints is the number of writes attempted in each region.
const ProbePoints = 3

// wordSize is the width of a single probe write.
const wordSize = unsafe.Sizeof(uintptr(0))

// AddressSpaceEnd is the end of the last region in every table.
const AddressSpaceEnd = uint64(^uintptr(0))

const (
	unmappedLabel  = "[unmapped]"
	anonymousLabel = "[anonymous]"
)

// Perm is the set of permissions a mapping was declared with.
type Perm uint8

const (
	Read Perm = 1 << iota
	Write
	Exec
	Private
	Shared

	// NoAccess is the permission set of a synthetic unmapped region.
	NoAccess Perm = 0
)

// ParsePerm decodes a /proc maps permission string such as "r-xp".
func ParsePerm(s string) (Perm, error) {
	if len(s) != 4 {
		return NoAccess, fmt.Errorf("permission string %q is not 4 characters", s)
	}

	var p Perm
	for i, want := range [...]byte{'r', 'w', 'x'} {
		switch s[i] {
		case want:
			p |= Read << i
		case '-':
		default:
			return NoAccess, fmt.Errorf("invalid permission %q in %q", s[i], s)
		}
	}

	switch s[3] {
	case 'p':
		p |= Private
	case 's':
		p |= Shared
	case '-':
	default:
		return NoAccess, fmt.Errorf("invalid sharing flag %q in %q", s[3], s)
	}

	return p, nil
}

// String returns p in the same 4 character form that ParsePerm accepts.
func (p Perm) String() string {
	b := []byte("----")
	if p&Read != 0 {
		b[0] = 'r'
	}
	if p&Write != 0 {
		b[1] = 'w'
	}
	if p&Exec != 0 {
		b[2] = 'x'
	}
	switch {
	case p&Private != 0:
		b[3] = 'p'
	case p&Shared != 0:
		b[3] = 's'
	}
	return string(b)
}

// Outcome is the result of one probe write.
type Outcome uint8

const (
	Untested Outcome = iota
	WriteSucceeded
	WriteDenied
)

func (o Outcome) String() string {
	switch o {
	case Untested:
		return "untested"
	case WriteSucceeded:
		return "written ok"
	case WriteDenied:
		return "denied"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Region is a contiguous range of the address space, [Start, End).
type Region struct {
	Start uint64
	End   uint64
	Perm  Perm

	// Label is the path or pseudo-path the mapping came from. Empty for
	// anonymous mappings.
	Label string

	// Outcomes holds one result per probe point, in ProbeAddrs order.
	Outcomes [ProbePoints]Outcome

	// Marks names known objects that live inside the region. See Annotate.
	Marks []string

	// Instructions holds the decoded instruction at each probe point of an
	// executable region, when disassembly was requested and possible.
	Instructions [ProbePoints]string
}

// Size returns End-Start.
func (r *Region) Size() uint64 {
	return r.End - r.Start
}

// Contains reports whether addr falls inside r.
func (r *Region) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

// Name returns the label, or "[anonymous]" if there isn't one.
func (r *Region) Name() string {
	if r.Label == "" {
		return anonymousLabel
	}
	return r.Label
}

// Unmapped reports whether r is a gap that was filled in between mappings.
func (r *Region) Unmapped() bool {
	return r.Perm == NoAccess && r.Label == unmappedLabel
}

// ProbeAddrs returns the addresses written to by the prober: the start, the
// midpoint and two words before the end.
//
// Regions smaller than two words produce addresses outside the region. That
// is left alone, the fault barrier will sort it out.
func (r *Region) ProbeAddrs() [ProbePoints]uint64 {
	return [ProbePoints]uint64{
		r.Start,
		r.Start + (r.End-r.Start)/2,
		r.End - 2*uint64(wordSize),
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("%#016x-%#016x %s %s", r.Start, r.End, r.Perm, r.Name())
}

// RegionTable is an ordered list of regions that covers the whole address
// space without gaps or overlaps.
type RegionTable []Region

// Validate checks that t starts at zero, ends at AddressSpaceEnd and that
// every region picks up where the previous one stopped.
func (t RegionTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("empty region table")
	}
	if t[0].Start != 0 {
		return fmt.Errorf("first region starts at %#x, not 0", t[0].Start)
	}

	for i := range t {
		if t[i].Start >= t[i].End {
			return fmt.Errorf("region %d: start %#x is not below end %#x", i, t[i].Start, t[i].End)
		}
		if i > 0 && t[i].Start != t[i-1].End {
			return fmt.Errorf("region %d: starts at %#x but region %d ends at %#x", i, t[i].Start, i-1, t[i-1].End)
		}
	}

	if last := t[len(t)-1].End; last != AddressSpaceEnd {
		return fmt.Errorf("last region ends at %#x, not %#x", last, AddressSpaceEnd)
	}
	return nil
}

// Find returns the index of the region containing addr, or -1.
func (t RegionTable) Find(addr uint64) int {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].End > addr
	})
	if i < len(t) && t[i].Contains(addr) {
		return i
	}
	return -1
}

func (t RegionTable) String() string {
	var sb strings.Builder
	for i := range t {
		sb.WriteString(t[i].String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func addrString(addr uint64) string {
	return fmt.Sprintf("%#x", addr)
}
