package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nordisk/flashui"
)

func newDumpCmd(a *app) *cobra.Command {
	var (
		df  diskFlags
		out string
	)
	dumpCmd := &cobra.Command{
		Use:   "dump --image <file> --out <disk image>",
		Short: "Copy the logical disk to a plain image file (backup)",
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
			return dumpDisk(cmd.OutOrStdout(), s, out)
		},
	}
	df.bind(dumpCmd.Flags())
	dumpCmd.Flags().StringVar(&out, "out", "", "output disk image file")
	_ = dumpCmd.MarkFlagRequired("out")
	return dumpCmd
}

func dumpDisk(w io.Writer, s *session, imagePath string) error {
	if err := os.MkdirAll(filepath.Dir(imagePath), 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	dst, err := os.Create(imagePath)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer dst.Close()

	diskSize := s.dev.Size()
	blockSize := s.dev.EraseBlockSize()
	fmt.Fprintf(w, "Copying disk (%s) to %s...\n", flashui.Human(diskSize), imagePath)

	buf := make([]byte, blockSize)
	var totalCopied int64
	for totalCopied < diskSize {
		n := min(blockSize, diskSize-totalCopied)
		if _, err := s.dev.ReadAt(buf[:n], totalCopied); err != nil {
			return fmt.Errorf("read disk at %d: %w", totalCopied, err)
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		totalCopied += n
		printProgress(w, totalCopied, diskSize)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync image: %w", err)
	}
	fmt.Fprintf(w, "\nCopy complete: %s copied\n", flashui.Human(totalCopied))
	return nil
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		df   diskFlags
		in   string
		noUI bool
	)
	loadCmd := &cobra.Command{
		Use:   "load --image <file> --in <disk image>",
		Short: "Write a plain image file to the logical disk (restore)",
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

			p, err := a.startProgress(s, progressScreen{title: " NORDISK LOAD "}, !noUI)
			if err != nil {
				return err
			}
			defer p.finish(0)

			var out io.Writer = cmd.OutOrStdout()
			if !noUI {
				out = io.Discard
			}
			s.flash.ResetStats()
			lerr := loadDisk(out, s, in, p)
			p.finish(0)
			if lerr != nil {
				return lerr
			}
			st := s.flash.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Flash: %d erases, %d programs, %d busy retries\n", st.Erases, st.Programs, st.Busy)
			return nil
		},
	}
	df.bind(loadCmd.Flags())
	loadCmd.Flags().StringVar(&in, "in", "", "source disk image file")
	loadCmd.Flags().BoolVar(&noUI, "no-ui", false, "plain output instead of the fullscreen view")
	_ = loadCmd.MarkFlagRequired("in")
	return loadCmd
}

func loadDisk(w io.Writer, s *session, imagePath string, p *progressView) error {
	src, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	st, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}
	imageSize := st.Size()
	diskSize := s.dev.Size()
	if diskSize < imageSize {
		return fmt.Errorf("disk too small: has %s, need %s", flashui.Human(diskSize), flashui.Human(imageSize))
	}

	fmt.Fprintf(w, "Copying %s (%s) to disk...\n", imagePath, flashui.Human(imageSize))
	if diskSize > imageSize {
		fmt.Fprintf(w, "WARNING: disk is %s, only writing %s\n", flashui.Human(diskSize), flashui.Human(imageSize))
	}

	sectorSize := s.dev.WriteBlockSize()
	blockSize := s.dev.EraseBlockSize()
	buf := make([]byte, blockSize)
	var totalCopied int64
	for totalCopied < imageSize {
		if p.stopped() {
			return errors.New("load interrupted")
		}
		n, err := io.ReadFull(src, buf[:min(blockSize, imageSize-totalCopied)])
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read image: %w", err)
		}
		if n == 0 {
			break
		}

		// A short last sector keeps the disk's bytes past the image end.
		span := int64(n)
		if rem := span % sectorSize; rem != 0 {
			span += sectorSize - rem
			tailAt := totalCopied + span - sectorSize
			tail := make([]byte, sectorSize)
			if _, err := s.dev.ReadAt(tail, tailAt); err != nil {
				return fmt.Errorf("read disk at %d: %w", tailAt, err)
			}
			copy(buf[n:span], tail[rem:])
		}

		if _, err := s.dev.WriteAt(buf[:span], totalCopied); err != nil {
			return fmt.Errorf("write disk at %d: %w", totalCopied, err)
		}
		p.mark("Write image", totalCopied/sectorSize, span/sectorSize)
		totalCopied += int64(n)
		printProgress(w, totalCopied, imageSize)
	}

	fmt.Fprintf(w, "\nCopy complete: %s written to disk\n", flashui.Human(totalCopied))
	return nil
}

func printProgress(w io.Writer, done, total int64) {
	percent := float64(done) * 100.0 / float64(total)
	fmt.Fprintf(w, "\rProgress: %s / %s (%.1f%%)", flashui.Human(done), flashui.Human(total), percent)
}
