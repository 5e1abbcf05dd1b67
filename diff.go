package writeprobe

import (
	"errors"
	"fmt"
)

// DiffBoundaries compares two snapshots region by region and reports, for
// each index, whether the region kept the same start and end.
//
// The result is as long as the longer table. Indexes that only exist in one
// of them are never stable.
func DiffBoundaries(before, after RegionTable) []bool {
	n := max(len(before), len(after))
	common := min(len(before), len(after))

	stable := make([]bool, n)
	for i := 0; i < common; i++ {
		stable[i] = before[i].Start == after[i].Start && before[i].End == after[i].End
	}
	return stable
}

// BoundaryChange is one index where two snapshots disagree. Before or After
// is nil when the index only exists in one snapshot.
type BoundaryChange struct {
	Index  int
	Before *Region
	After  *Region
}

func (c *BoundaryChange) Error() string {
	switch {
	case c.Before == nil:
		return fmt.Sprintf("region %d: appeared as %#x-%#x", c.Index, c.After.Start, c.After.End)
	case c.After == nil:
		return fmt.Sprintf("region %d: %#x-%#x disappeared", c.Index, c.Before.Start, c.Before.End)
	}
	return fmt.Sprintf("region %d: %#x-%#x became %#x-%#x",
		c.Index, c.Before.Start, c.Before.End, c.After.Start, c.After.End)
}

// BoundaryChanges lists every index that DiffBoundaries would report as not
// stable.
func BoundaryChanges(before, after RegionTable) []*BoundaryChange {
	var changes []*BoundaryChange
	for i, ok := range DiffBoundaries(before, after) {
		if ok {
			continue
		}

		c := &BoundaryChange{Index: i}
		if i < len(before) {
			c.Before = &before[i]
		}
		if i < len(after) {
			c.After = &after[i]
		}
		changes = append(changes, c)
	}
	return changes
}

// LayoutChanged returns an error describing every boundary change between
// the snapshots, or nil if the layout held still.
func LayoutChanged(before, after RegionTable) error {
	changes := BoundaryChanges(before, after)
	errs := make([]error, len(changes))
	for i, c := range changes {
		errs[i] = c
	}
	return errors.Join(errs...)
}
