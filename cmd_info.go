package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nordisk/flashui"
)

func newInfoCmd(a *app) *cobra.Command {
	var df diskFlags
	infoCmd := &cobra.Command{
		Use:   "info --image <file>",
		Short: "Show the disk geometry reported by the driver",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.openDisk(&df)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(); err == nil {
					err = cerr
				}
			}()

			g := s.dev.Geometry()
			l := s.flash.Layout()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Flash:  0x%08X-0x%08X  %d sectors  %s\n", l.Base, l.End()-1, len(l.Sectors), flashui.Human(int64(l.Size())))
			fmt.Fprintf(out, "Disk:   0x%08X-0x%08X  %s\n", s.start, s.end-1, flashui.Human(s.dev.Size()))
			fmt.Fprintf(out, "  Sector count : %d\n", g.SectorCount)
			fmt.Fprintf(out, "  Sector size  : %d\n", g.SectorSize)
			fmt.Fprintf(out, "  Block size   : %d sectors\n", g.BlockSize)

			first, last := l.SectorAt(s.start), l.SectorAt(s.end-1)
			fmt.Fprintf(out, "Physical sectors %d-%d:\n", first, last)
			for i := first; i >= 0 && i <= last; i++ {
				fmt.Fprintf(out, "  %2d  0x%08X  %s\n", i, l.SectorStart(uint32(i)), flashui.Human(int64(l.Sectors[i])))
			}
			return nil
		},
	}
	df.bind(infoCmd.Flags())
	return infoCmd
}
