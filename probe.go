package writeprobe

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// maxInstructionLen is enough bytes for any single instruction on the
// supported architectures.
const maxInstructionLen = 16

// PointMask selects probe points. Bit i stands for the i'th address returned
// by Region.ProbeAddrs.
type PointMask uint8

const (
	PointStart PointMask = 1 << iota
	PointMiddle
	PointEnd

	AllPoints = PointStart | PointMiddle | PointEnd
)

// Has reports whether point i is selected.
func (m PointMask) Has(i int) bool {
	return m&(1<<i) != 0
}

// Prober writes to every region of a table and records the outcomes in place.
type Prober struct {
	// Logger receives a debug entry for every probe. Nothing is logged if
	// it's nil.
	Logger logrus.FieldLogger

	// Disassemble decodes the instruction under each probe point of
	// executable regions into Region.Instructions.
	Disassemble bool

	// Points selects which probe points are written. Points that aren't
	// selected stay Untested. Zero means AllPoints.
	Points PointMask
}

// ProbeTable probes the selected points (by default the start, middle and
// end) of every region in t, in order. Outcomes are stored in t itself.
//
// Probing stops early if ctx is done (the context is only checked between
// regions) or if a probe returns a *ReadbackError.
func (p *Prober) ProbeTable(ctx context.Context, t RegionTable) error {
	log := p.logger()
	points := p.Points
	if points == 0 {
		points = AllPoints
	}

	for i := range t {
		if err := ctx.Err(); err != nil {
			return err
		}

		r := &t[i]
		exec := r.Perm&Exec != 0
		for j, addr := range r.ProbeAddrs() {
			if !points.Has(j) {
				continue
			}
			if p.Disassemble && exec {
				r.Instructions[j] = describeAt(uintptr(addr), r.End)
			}

			outcome, err := probeWord(uintptr(addr), exec)
			r.Outcomes[j] = outcome
			log.WithFields(logrus.Fields{
				"region":  i,
				"point":   j,
				"addr":    addrString(addr),
				"perm":    r.Perm.String(),
				"outcome": outcome.String(),
			}).Debug("probe")
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Prober) logger() logrus.FieldLogger {
	if p.Logger != nil {
		return p.Logger
	}
	return discardLogger()
}

// describeAt disassembles the instruction at addr without reading past end.
func describeAt(addr uintptr, end uint64) string {
	n := maxInstructionLen
	if avail := end - uint64(addr); uint64(addr) < end && avail < uint64(n) {
		n = int(avail)
	}

	code, err := Peek(addr, n)
	if err != nil {
		return ""
	}

	inst, err := disassemble(code)
	if err != nil {
		return ""
	}
	return inst
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
