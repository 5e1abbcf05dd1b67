// The writeprobe tool checks which parts of its own address space can really
// be written to and prints a table comparing that with the declared
// permissions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pboyd/writeprobe"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit statuses.
const (
	exitOK             = 0
	exitFailures       = 1
	exitUsage          = 2
	exitLayout         = 3
	exitReadback       = 4
	exitUnknownFailure = 5
)

var errVerdictFailed = errors.New("one or more regions failed")

type config struct {
	mapsPath     string
	controls     bool
	disasm       bool
	strict       bool
	verbose      bool
	logFormat    string
	onlyFailures bool
	points       uint8
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cfg config
	log := logrus.New()
	log.SetOutput(os.Stderr)

	cmd := &cobra.Command{
		Use:   "writeprobe",
		Short: "Check which memory regions of this process are really writable",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return usageError(err.Error())
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configureLogger(log, cfg); err != nil {
				return err
			}
			if cfg.points < 1 || cfg.points > uint8(writeprobe.AllPoints) {
				return usageError(fmt.Sprintf("--points must be between 1 and %d, got %d", writeprobe.AllPoints, cfg.points))
			}
			return probe(cmd, log, cfg)
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err.Error())
	})

	flags := cmd.Flags()
	flags.StringVar(&cfg.mapsPath, "maps", writeprobe.SelfMaps, "memory layout to read")
	flags.BoolVar(&cfg.controls, "controls", true, "map control regions with known protections")
	flags.BoolVar(&cfg.disasm, "disasm", false, "show the instruction under each probe in executable regions")
	flags.BoolVar(&cfg.strict, "strict", false, "exit with a non-zero status if any region fails")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every probe")
	flags.StringVar(&cfg.logFormat, "log-format", "text", "log format: text or json")
	flags.BoolVar(&cfg.onlyFailures, "only-failures", false, "only print regions that failed")
	flags.Uint8Var(&cfg.points, "points", uint8(writeprobe.AllPoints), "probe points to write as a bit mask: 1 start, 2 middle, 4 end")

	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		log.Error(err)
	}
	return exitCode(err)
}

func configureLogger(log *logrus.Logger, cfg config) error {
	switch cfg.logFormat {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return usageError(fmt.Sprintf("unknown log format %q", cfg.logFormat))
	}

	log.SetLevel(logrus.WarnLevel)
	if cfg.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

func probe(cmd *cobra.Command, log *logrus.Logger, cfg config) error {
	report, err := writeprobe.Run(context.Background(), writeprobe.Options{
		MapsPath:    cfg.mapsPath,
		Controls:    cfg.controls,
		Disassemble: cfg.disasm,
		Points:      writeprobe.PointMask(cfg.points),
		Logger:      log,
	})
	if err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), report, cfg.onlyFailures); err != nil {
		return err
	}

	if cfg.strict && len(report.Failures()) > 0 {
		return errVerdictFailed
	}
	return nil
}

type usageError string

func (e usageError) Error() string {
	return string(e)
}

func exitCode(err error) int {
	var (
		layoutErr   *writeprobe.LayoutError
		readbackErr *writeprobe.ReadbackError
		usageErr    usageError
	)

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errVerdictFailed):
		return exitFailures
	case errors.As(err, &usageErr):
		return exitUsage
	case errors.As(err, &layoutErr):
		return exitLayout
	case errors.As(err, &readbackErr):
		return exitReadback
	}
	return exitUnknownFailure
}
