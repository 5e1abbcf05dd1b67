package writeprobe

// Verdict decides whether a region behaved the way its permissions say it
// should. It passes when:
//
//   - the region is writable and all three writes went through, or
//   - the region isn't writable, its boundaries held still and all three
//     writes were denied, or
//   - the region isn't writable, its boundaries moved, and only the write
//     near the end went through.
//
// The last case covers regions like the stack, which can grow into the
// end probe between snapshots.
func Verdict(writable, stable, start, mid, end bool) bool {
	switch {
	case writable:
		return start && mid && end
	case stable:
		return !start && !mid && !end
	default:
		return !start && !mid && end
	}
}

// Verdict applies the package-level Verdict to r using its declared
// permissions and recorded outcomes.
func (r *Region) Verdict(stable bool) bool {
	return Verdict(
		r.Perm&Write != 0,
		stable,
		r.Outcomes[0] == WriteSucceeded,
		r.Outcomes[1] == WriteSucceeded,
		r.Outcomes[2] == WriteSucceeded,
	)
}

// Verdicts returns the verdict of every region in t. stable is indexed the
// same way as t, as returned by DiffBoundaries. A missing entry counts as
// not stable.
func Verdicts(t RegionTable, stable []bool) []bool {
	verdicts := make([]bool, len(t))
	for i := range t {
		verdicts[i] = t[i].Verdict(i < len(stable) && stable[i])
	}
	return verdicts
}
