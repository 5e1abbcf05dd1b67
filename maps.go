package writeprobe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SelfMaps is where Linux describes the current process's memory layout.
const SelfMaps = "/proc/self/maps"

// LayoutError is returned when the memory layout can't be read.
type LayoutError struct {
	Path string
	Err  error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("unable to read memory layout from %s: %v", e.Path, e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// ReadMaps opens path (usually SelfMaps) and parses it with ParseMaps.
func ReadMaps(path string) (t RegionTable, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &LayoutError{Path: path, Err: err}
	}
	defer f.Close()

	t, skipped, err = ParseMaps(f)
	if err != nil {
		return nil, 0, &LayoutError{Path: path, Err: err}
	}
	return t, skipped, nil
}

// ParseMaps reads lines in the /proc/<pid>/maps format:
//
//	<start>-<end> <perms> <offset> <dev> <inode> [path]
//
// and returns a table covering the whole address space. Holes between
// mappings become "[unmapped]" regions with no permissions. Lines that can't
// be parsed, or that go backwards, are skipped and counted in skipped. Blank
// lines aren't counted.
func ParseMaps(r io.Reader) (t RegionTable, skipped int, err error) {
	var prevEnd uint64

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		region, ok := parseMapsLine(line)
		if !ok || region.Start < prevEnd {
			skipped++
			continue
		}

		if region.Start > prevEnd {
			t = append(t, unmapped(prevEnd, region.Start))
		}
		t = append(t, region)
		prevEnd = region.End
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	if prevEnd < AddressSpaceEnd {
		t = append(t, unmapped(prevEnd, AddressSpaceEnd))
	}
	return t, skipped, nil
}

func unmapped(start, end uint64) Region {
	return Region{
		Start: start,
		End:   end,
		Perm:  NoAccess,
		Label: unmappedLabel,
	}
}

func parseMapsLine(line string) (Region, bool) {
	var r Region

	addrs, rest := nextField(line)
	startHex, endHex, found := strings.Cut(addrs, "-")
	if !found {
		return r, false
	}

	var err error
	r.Start, err = strconv.ParseUint(startHex, 16, 64)
	if err != nil {
		return r, false
	}
	r.End, err = strconv.ParseUint(endHex, 16, 64)
	if err != nil || r.End <= r.Start {
		return r, false
	}

	var perms string
	perms, rest = nextField(rest)
	r.Perm, err = ParsePerm(perms)
	if err != nil {
		return r, false
	}

	// Offset, device and inode have to be there, but nothing here needs
	// them beyond checking that they look right.
	var offset, dev, inode string
	offset, rest = nextField(rest)
	dev, rest = nextField(rest)
	inode, rest = nextField(rest)
	if dev == "" || inode == "" {
		return r, false
	}
	if _, err := strconv.ParseUint(offset, 16, 64); err != nil {
		return r, false
	}
	if _, err := strconv.ParseUint(inode, 10, 64); err != nil {
		return r, false
	}

	// Paths can contain spaces, so take the rest of the line as-is.
	r.Label = strings.TrimSpace(rest)
	return r, true
}

// nextField splits off the first space separated field in s.
func nextField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
