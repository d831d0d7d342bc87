// nordisk
// FAT volumes on simulated NOR flash, written through the flash disk driver.
// Cobra CLI + tcell fullscreen UI with one glyph per logical sector.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nordisk/flashdrv"
)

// envImage supplies the default for --image.
const envImage = "NORDISK_IMAGE"

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

// app carries state shared by all commands.
type app struct {
	logLevel string
	level    flashdrv.LogLevel
	logs     *heldWriter
	logger   *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{logs: &heldWriter{w: stderr}}

	root := &cobra.Command{
		Use:           "nordisk",
		Short:         "Flash disk driver tool",
		Long:          "Create simulated NOR flash images and build, inspect and copy FAT volumes through the flash disk driver",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := flashdrv.ParseLogLevel(a.logLevel)
			if !ok {
				return fmt.Errorf("invalid --log-level %q (disabled|info|error|verbose1|verbose2)", a.logLevel)
			}
			a.level = level
			a.logger = slog.New(slog.NewTextHandler(a.logs, &slog.HandlerOptions{Level: flashdrv.LevelTrace}))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "disabled", "driver diagnostics: disabled|info|error|verbose1|verbose2")

	root.AddCommand(newImageCmd(a))
	root.AddCommand(newInfoCmd(a))
	root.AddCommand(newFormatCmd(a))
	root.AddCommand(newDumpCmd(a))
	root.AddCommand(newLoadCmd(a))
	root.AddCommand(newFSCmd(a))
	return root
}

func main() {
	must(newRootCmd(os.Stdout, os.Stderr).Execute())
}
