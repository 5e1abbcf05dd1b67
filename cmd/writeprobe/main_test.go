package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pboyd/writeprobe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaps = `00001000-00002000 r--p 00000000 00:00 0 ro
00002000-00003000 rw-p 00000000 00:00 0 rw
`

func writeMaps(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "maps")
	require.NoError(t, os.WriteFile(path, []byte(testMaps), 0o600))
	return path
}

func TestRun_ExitCodes(t *testing.T) {
	maps := writeMaps(t)

	cases := map[string]struct {
		args []string
		want int
	}{
		"ok":              {[]string{"--controls=false", "--maps", maps}, exitOK},
		"strict":          {[]string{"--controls=false", "--strict", "--maps", maps}, exitFailures},
		"missing layout":  {[]string{"--controls=false", "--maps", filepath.Join(t.TempDir(), "nope")}, exitLayout},
		"unknown flag":    {[]string{"--nope"}, exitUsage},
		"extra args":      {[]string{"something"}, exitUsage},
		"bad log format":  {[]string{"--log-format", "xml"}, exitUsage},
		"json only fails": {[]string{"--controls=false", "--log-format", "json", "--only-failures", "--maps", maps}, exitOK},
		"start and end":   {[]string{"--controls=false", "--points", "5", "--maps", maps}, exitOK},
		"no points":       {[]string{"--points", "0"}, exitUsage},
		"too many points": {[]string{"--points", "8"}, exitUsage},
		"points overflow": {[]string{"--points", "256"}, exitUsage},
		"points not int":  {[]string{"--points", "all"}, exitUsage},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, run(c.args))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailures, exitCode(errVerdictFailed))
	assert.Equal(t, exitUsage, exitCode(usageError("bad")))
	assert.Equal(t, exitLayout, exitCode(&writeprobe.LayoutError{Path: "x", Err: os.ErrNotExist}))
	assert.Equal(t, exitReadback, exitCode(fmt.Errorf("probing: %w", &writeprobe.ReadbackError{Addr: 0x1000})))
	assert.Equal(t, exitUnknownFailure, exitCode(errors.New("?")))
}

func testReport() *writeprobe.Report {
	written := [writeprobe.ProbePoints]writeprobe.Outcome{writeprobe.WriteSucceeded, writeprobe.WriteSucceeded, writeprobe.WriteSucceeded}
	denied := [writeprobe.ProbePoints]writeprobe.Outcome{writeprobe.WriteDenied, writeprobe.WriteDenied, writeprobe.WriteDenied}

	before := writeprobe.RegionTable{
		{Start: 0, End: 0x1000, Label: "[unmapped]", Outcomes: denied},
		{Start: 0x1000, End: 0x2000, Perm: writeprobe.Read | writeprobe.Write | writeprobe.Private, Outcomes: written, Marks: []string{"go:heap"}},
		{Start: 0x2000, End: 0x3000, Perm: writeprobe.Read | writeprobe.Write | writeprobe.Private, Label: "/lib/x.so", Outcomes: denied},
		{Start: 0x3000, End: writeprobe.AddressSpaceEnd, Label: "[unmapped]", Outcomes: denied},
	}
	after := append(writeprobe.RegionTable(nil), before...)

	r := &writeprobe.Report{Before: before, After: after}
	r.Stable = writeprobe.DiffBoundaries(before, after)
	r.Verdicts = writeprobe.Verdicts(before, r.Stable)
	return r
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, testReport(), false))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[0], "result")
	assert.Contains(t, out, "[unmapped]")
	assert.Contains(t, out, "[anonymous]")
	assert.Contains(t, out, "go:heap")
	assert.Contains(t, out, "rw-p")
	assert.Contains(t, out, "written ok")
	assert.Equal(t, 3, strings.Count(out, "PASS"))
	assert.Equal(t, 1, strings.Count(out, "FAIL"))
	assert.Contains(t, out, "4 regions, 1 failed")
	assert.NotContains(t, out, "layout changed")
}

func TestRender_OnlyFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, testReport(), true))

	out := buf.String()
	assert.NotContains(t, out, "PASS")
	assert.Contains(t, out, "/lib/x.so")
	assert.NotContains(t, out, "go:heap")
}

func TestRender_LayoutChanged(t *testing.T) {
	r := testReport()
	r.After = r.After[:2]
	r.Stable = writeprobe.DiffBoundaries(r.Before, r.After)
	r.Verdicts = writeprobe.Verdicts(r.Before, r.Stable)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, r, false))
	assert.Contains(t, buf.String(), "layout changed while probing")
	assert.Contains(t, buf.String(), "disappeared")
}
