package writeprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdict_TruthTable(t *testing.T) {
	cases := map[string]struct {
		writable, stable bool
		start, mid, end  bool
		pass             bool
	}{
		"writable, all written, stable":      {true, true, true, true, true, true},
		"read-only, all denied, stable":      {false, true, false, false, false, true},
		"read-only, end written, unstable":   {false, false, false, false, true, true},
		"writable, start denied":             {true, true, false, true, true, false},
		"read-only, all written, stable":     {false, true, true, true, true, false},
		"read-only, all denied, unstable":    {false, false, false, false, false, false},
		"read-only, end written, stable":     {false, true, false, false, true, false},
		"read-only, start and end, unstable": {false, false, true, false, true, false},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.pass, Verdict(c.writable, c.stable, c.start, c.mid, c.end))
		})
	}
}

func TestVerdict_Exhaustive(t *testing.T) {
	// Writable+all written passes whatever the stability, the other two
	// rules each match one row.
	var passes int
	for bits := 0; bits < 32; bits++ {
		in := [5]bool{}
		for i := range in {
			in[i] = bits&(1<<i) != 0
		}

		got := Verdict(in[0], in[1], in[2], in[3], in[4])
		assert.Equal(t, got, Verdict(in[0], in[1], in[2], in[3], in[4]), "not deterministic")
		if got {
			passes++
		}
	}
	assert.Equal(t, 4, passes)
}

func TestRegion_Verdict(t *testing.T) {
	cases := map[string]struct {
		perm     string
		outcomes [ProbePoints]Outcome
		stable   bool
		pass     bool
	}{
		"rw-p written": {
			perm:     "rw-p",
			outcomes: [ProbePoints]Outcome{WriteSucceeded, WriteSucceeded, WriteSucceeded},
			stable:   true,
			pass:     true,
		},
		"r--p denied": {
			perm:     "r--p",
			outcomes: [ProbePoints]Outcome{WriteDenied, WriteDenied, WriteDenied},
			stable:   true,
			pass:     true,
		},
		"r--p grew into end": {
			perm:     "r--p",
			outcomes: [ProbePoints]Outcome{WriteDenied, WriteDenied, WriteSucceeded},
			stable:   false,
			pass:     true,
		},
		"r--p denied but moved": {
			perm:     "r--p",
			outcomes: [ProbePoints]Outcome{WriteDenied, WriteDenied, WriteDenied},
			stable:   false,
			pass:     false,
		},
		"rw-p untested": {
			perm:   "rw-p",
			stable: true,
			pass:   false,
		},
		"r--p untested counts as not written": {
			perm:   "r--p",
			stable: true,
			pass:   true,
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			perm, err := ParsePerm(c.perm)
			if !assert.NoError(t, err) {
				return
			}
			r := Region{Start: 0x1000, End: 0x2000, Perm: perm, Outcomes: c.outcomes}
			assert.Equal(t, c.pass, r.Verdict(c.stable))
		})
	}
}

func TestVerdicts(t *testing.T) {
	denied := [ProbePoints]Outcome{WriteDenied, WriteDenied, WriteDenied}
	table := RegionTable{
		{Start: 0, End: 0x1000, Perm: NoAccess, Label: unmappedLabel, Outcomes: denied},
		{Start: 0x1000, End: AddressSpaceEnd, Perm: NoAccess, Label: unmappedLabel, Outcomes: denied},
	}

	assert.Equal(t, []bool{true, true}, Verdicts(table, []bool{true, true}))
	// Missing stability entries count as unstable.
	assert.Equal(t, []bool{true, false}, Verdicts(table, []bool{true}))
}
