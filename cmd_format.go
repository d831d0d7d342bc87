package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nordisk/fatfmt"
	"nordisk/flashui"
)

const maxFATSectorSize = 1 << 15

func newFormatCmd(a *app) *cobra.Command {
	var (
		df           diskFlags
		ftStr        string
		label, oem   string
		full, verify bool
		noUI         bool
		linger       time.Duration
	)

	formatCmd := &cobra.Command{
		Use:   "format --image <file>",
		Short: "Build a FAT12/16/32 volume on the flash disk",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ft, err := fatfmt.ParseType(ftStr)
			if err != nil {
				return err
			}
			if len(label) > 11 {
				return fmt.Errorf("label too long (max 11)")
			}
			if len(oem) > 8 {
				return fmt.Errorf("oem too long (max 8)")
			}

			s, err := a.openDisk(&df)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(); err == nil {
					err = cerr
				}
			}()

			// The BPB holds bytes per sector in 16 bits.
			ss := s.dev.WriteBlockSize()
			if ss > maxFATSectorSize {
				return fmt.Errorf("sector size %d too large for FAT (max %d)", ss, maxFATSectorSize)
			}

			opts := fatfmt.Options{
				Type:       ft,
				Size:       s.dev.Size(),
				SectorSize: uint16(ss),
				Label:      label,
				OEM:        oem,
				Full:       full,
				Verify:     verify,
				ChunkSize:  int(s.dev.EraseBlockSize()),
			}
			plan, err := fatfmt.Plan(opts)
			if err != nil {
				return err
			}

			p, err := a.startProgress(s, formatScreen(plan, full), !noUI)
			if err != nil {
				return err
			}
			defer p.finish(0)

			s.flash.ResetStats()
			opts.Progress = func(phase fatfmt.Phase, first, count int64) {
				p.mark(phase.Describe(), first, count)
			}
			opts.PhaseDone = func(phase fatfmt.Phase) { p.phaseDone(string(phase)) }
			opts.Stop = p.stopped

			res, ferr := fatfmt.Format(s.dev, opts)
			if ferr == nil {
				p.finish(linger)
			} else {
				p.finish(0)
			}
			if errors.Is(ferr, fatfmt.ErrInterrupted) {
				return errors.New("format interrupted")
			}
			if ferr != nil {
				return ferr
			}

			out := cmd.OutOrStdout()
			if err := res.WriteSummary(out); err != nil {
				return err
			}
			st := s.flash.Stats()
			fmt.Fprintf(out, "Flash: %d erases, %d programs, %d busy retries\n", st.Erases, st.Programs, st.Busy)
			return nil
		},
	}

	formatCmd.Flags().StringVar(&ftStr, "type", "fat12", "fat12|fat16|fat32")
	formatCmd.Flags().StringVar(&label, "label", "", "volume label (<=11 ASCII)")
	formatCmd.Flags().StringVar(&oem, "oem", fatfmt.DefaultOEM, "OEM string (<=8 ASCII)")
	formatCmd.Flags().BoolVar(&full, "full", false, "full format: zero all data sectors")
	formatCmd.Flags().BoolVar(&verify, "verify", false, "read back every written chunk")
	formatCmd.Flags().BoolVar(&noUI, "no-ui", false, "plain output instead of the fullscreen view")
	formatCmd.Flags().DurationVar(&linger, "linger", 2*time.Second, "keep the finished screen up this long")
	df.bind(formatCmd.Flags())
	return formatCmd
}

func formatScreen(plan fatfmt.Result, full bool) progressScreen {
	g, l := plan.Geometry, plan.Layout
	phases := []string{"Boot"}
	if plan.Type == fatfmt.FAT32 {
		phases = append(phases, "FSInfo", "Backup")
	}
	phases = append(phases, "FAT1", "FAT2", "Root")
	if full {
		phases = append(phases, "Data")
	}

	var system []flashui.Span
	for _, sp := range plan.Regions.System() {
		system = append(system, flashui.Span{First: sp.First, Last: sp.Last})
	}

	return progressScreen{
		title: fmt.Sprintf(" NORDISK FORMAT (%s) ", plan.Type),
		summary: []string{
			fmt.Sprintf("Bytes/Sector: %-4d  Sectors/Cluster: %-2d  Total sectors: %d", g.BytesPerSector, g.SectorsPerCluster, g.TotalSectors()),
			fmt.Sprintf("Reserved: %-3d  FATs: %-1d  Root entries: %-3d", g.ReservedSectors, g.NumFATs, g.RootEntries),
			fmt.Sprintf("Sectors/FAT: %-4d  RootDir sectors: %-3d  Data sectors: %-4d", l.FATSectors, l.RootDirSectors, l.DataSectors),
		},
		phases: phases,
		system: system,
	}
}
