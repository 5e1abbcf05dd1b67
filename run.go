package writeprobe

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Options configures Run.
type Options struct {
	// MapsPath is the memory layout to read. Defaults to SelfMaps.
	MapsPath string

	// Controls maps regions with known protections before the first
	// snapshot so they show up in the report.
	Controls bool

	// Disassemble records the instruction under each probe point of
	// executable regions.
	Disassemble bool

	// Points selects the probe points written in each region. Zero means
	// AllPoints.
	Points PointMask

	Logger logrus.FieldLogger
}

// Report is everything a run found.
type Report struct {
	// Before is the probed table, outcomes included.
	Before RegionTable
	// After is a second snapshot taken once probing finished.
	After RegionTable
	// Stable holds DiffBoundaries(Before, After).
	Stable []bool
	// Verdicts holds one verdict per region of Before.
	Verdicts []bool
}

// Failures returns the indexes of every region in Before that failed.
func (r *Report) Failures() []int {
	var failed []int
	for i, ok := range r.Verdicts {
		if !ok {
			failed = append(failed, i)
		}
	}
	return failed
}

// LayoutChanged describes how the layout moved while probing, or returns nil.
func (r *Report) LayoutChanged() error {
	return LayoutChanged(r.Before, r.After)
}

// Run snapshots the memory layout, probes every region, takes a second
// snapshot and works out a verdict for each region.
//
// A *LayoutError means a snapshot couldn't be read. A *ReadbackError means
// the probe can't be trusted and the run was abandoned.
func Run(ctx context.Context, opts Options) (report *Report, err error) {
	log := opts.Logger
	if log == nil {
		log = discardLogger()
	}
	path := opts.MapsPath
	if path == "" {
		path = SelfMaps
	}

	marks := Landmarks()
	if opts.Controls {
		controls, cerr := NewControls()
		if cerr != nil {
			return nil, cerr
		}
		defer func() {
			err = errors.Join(err, controls.Close())
		}()
		marks = append(marks, controls.Landmarks()...)
	}

	before, err := snapshot(log, path, "before")
	if err != nil {
		return nil, err
	}
	Annotate(before, marks...)

	prober := &Prober{Logger: log, Disassemble: opts.Disassemble, Points: opts.Points}
	if err := prober.ProbeTable(ctx, before); err != nil {
		return nil, fmt.Errorf("probing: %w", err)
	}

	after, err := snapshot(log, path, "after")
	if err != nil {
		return nil, err
	}

	report = &Report{
		Before: before,
		After:  after,
		Stable: DiffBoundaries(before, after),
	}
	report.Verdicts = Verdicts(before, report.Stable)

	if changed := report.LayoutChanged(); changed != nil {
		log.WithError(changed).Warn("memory layout changed while probing")
	}
	log.WithField("failed", len(report.Failures())).Info("probing finished")

	return report, nil
}

func snapshot(log logrus.FieldLogger, path, name string) (RegionTable, error) {
	t, skipped, err := ReadMaps(path)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"snapshot": name,
		"path":     path,
		"regions":  len(t),
		"skipped":  skipped,
	}).Info("read memory layout")
	return t, nil
}
