package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pboyd/writeprobe"
)

func render(w io.Writer, report *writeprobe.Report, onlyFailures bool) error {
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(t, "start\tend\tperm\tname\tstart\tmid\tend\tstable\tresult\tnotes\n")

	for i := range report.Before {
		if onlyFailures && report.Verdicts[i] {
			continue
		}

		r := &report.Before[i]
		fmt.Fprintf(t, "%016x\t%016x\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Start, r.End, r.Perm, r.Name(),
			r.Outcomes[0], r.Outcomes[1], r.Outcomes[2],
			yesNo(i < len(report.Stable) && report.Stable[i]),
			passFail(report.Verdicts[i]),
			notes(r))
	}
	if err := t.Flush(); err != nil {
		return err
	}

	if changed := report.LayoutChanged(); changed != nil {
		fmt.Fprintf(w, "\nlayout changed while probing:\n%v\n", changed)
	}
	fmt.Fprintf(w, "\n%d regions, %d failed\n", len(report.Before), len(report.Failures()))
	return nil
}

func notes(r *writeprobe.Region) string {
	parts := append([]string(nil), r.Marks...)
	for i, inst := range r.Instructions {
		if inst != "" {
			parts = append(parts, fmt.Sprintf("@%d: %s", i, inst))
		}
	}
	return strings.Join(parts, "; ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func passFail(b bool) string {
	if b {
		return "PASS"
	}
	return "FAIL"
}
