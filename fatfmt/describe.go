package fatfmt

import (
	"fmt"
	"io"
	"strings"
)

// WriteSummary prints the geometry and the absolute sector layout of the
// volume.
func (r Result) WriteSummary(w io.Writer) error {
	g, l, reg := r.Geometry, r.Layout, r.Regions
	totalSectors := int64(g.TotalSectors())
	cylinders := 0
	if g.SectorsPerTrack > 0 && g.NumHeads > 0 {
		cylinders = int(totalSectors) / int(g.SectorsPerTrack) / int(g.NumHeads)
	}

	lineWidth := 79
	barHeavy := strings.Repeat("═", lineWidth)
	barLight := strings.Repeat("─", lineWidth)

	labelDisplay := strings.TrimSpace(r.Label)
	if labelDisplay == "" {
		labelDisplay = DefaultLabel
	}
	labelDisplay = strings.ToUpper(labelDisplay)

	oemDisplay := strings.TrimSpace(r.OEM)
	if oemDisplay == "" {
		oemDisplay = DefaultOEM
	}
	oemDisplay = strings.ToUpper(oemDisplay)

	plural := "s"
	if g.SectorsPerCluster == 1 {
		plural = ""
	}

	lines := []string{
		barHeavy,
		fmt.Sprintf(" GEOMETRY (%s)", r.Type),
		barLight,
		fmt.Sprintf(" Bytes/Sector: %-4d    Sectors/Track: %-2d    Heads: %-2d   Cylinders: %d", g.BytesPerSector, g.SectorsPerTrack, g.NumHeads, cylinders),
		fmt.Sprintf(" Reserved: %-4d    FATs: %-2d  Root entries: %d", g.ReservedSectors, g.NumFATs, g.RootEntries),
		fmt.Sprintf(" Sectors/FAT: %-5d   RootDir sectors: %-5d   Data sectors: %d", l.FATSectors, l.RootDirSectors, l.DataSectors),
		fmt.Sprintf(" Cluster size: %d sector%s (%d bytes)  Clusters: %d  Total sectors: %d", g.SectorsPerCluster, plural, g.ClusterBytes(), l.Clusters, totalSectors),
		fmt.Sprintf(" OEM: %s  Label: %s", oemDisplay, labelDisplay),
		barLight,
		" LAYOUT (absolute sector ranges)",
		barLight,
		fmt.Sprintf(" Boot  : %s", formatRange(reg.Boot)),
		fmt.Sprintf(" FAT #1: %s    FAT #2: %s", formatRange(reg.FAT1), formatRange(reg.FAT2)),
	}
	if r.Type != FAT32 {
		lines = append(lines, fmt.Sprintf(" Root  : %s    Data  : %s", formatRange(reg.Root), formatRange(reg.Data)))
	} else {
		lines = append(lines, fmt.Sprintf(" Data  : %s", formatRange(reg.Data)))
	}
	lines = append(lines, barHeavy)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatRange(s Span) string {
	if s.Last <= s.First {
		return fmt.Sprintf("[%06d]", s.First)
	}
	return fmt.Sprintf("[%06d … %06d]", s.First, s.Last)
}
