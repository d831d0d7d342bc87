//go:build cgo

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"tinygo.org/x/tinyfs/fatfs"
)

func newFSCmd(a *app) *cobra.Command {
	var df diskFlags
	fsCmd := &cobra.Command{
		Use:   "fs",
		Short: "Access files on the FAT volume through the driver",
	}
	df.bind(fsCmd.PersistentFlags())

	lsCmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			return a.withFS(&df, func(fat *fatfs.FATFS) error {
				f, err := fat.OpenFile(dir, os.O_RDONLY)
				if err != nil {
					return mapFatErr("open dir", err)
				}
				defer func() { _ = f.Close() }()

				entries, err := f.Readdir(0)
				if err != nil {
					return mapFatErr("readdir", err)
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					name := e.Name()
					if name == "." || name == ".." {
						continue
					}
					if e.IsDir() {
						fmt.Fprintf(out, "%10s  %s/\n", "<DIR>", name)
						continue
					}
					fmt.Fprintf(out, "%10d  %s\n", e.Size(), name)
				}
				return nil
			})
		},
	}

	catCmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFS(&df, func(fat *fatfs.FATFS) error {
				f, err := fat.OpenFile(args[0], os.O_RDONLY)
				if err != nil {
					return mapFatErr("open", err)
				}
				defer func() { _ = f.Close() }()
				if _, err := io.Copy(cmd.OutOrStdout(), f); err != nil {
					return mapFatErr("read", err)
				}
				return nil
			})
		},
	}

	putCmd := &cobra.Command{
		Use:   "put <local file> <path>",
		Short: "Copy a local file onto the volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			return a.withFS(&df, func(fat *fatfs.FATFS) error {
				f, err := fat.OpenFile(args[1], os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
				if err != nil {
					return mapFatErr("open writer", err)
				}
				n, err := io.Copy(f, src)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return mapFatErr("write", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", args[1], n)
				return nil
			})
		},
	}

	mkdirCmd := &cobra.Command{
		Use:   "mkdir <dir>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withFS(&df, func(fat *fatfs.FATFS) error {
				return mapFatErr("mkdir", fat.Mkdir(args[0], 0o777))
			})
		},
	}

	fsCmd.AddCommand(lsCmd, catCmd, putCmd, mkdirCmd)
	return fsCmd
}

// withFS mounts the volume on the disk, runs fn and unmounts.
func (a *app) withFS(df *diskFlags, fn func(fat *fatfs.FATFS) error) (err error) {
	s, err := a.openDisk(df)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	fat := fatfs.New(s.dev).Configure(&fatfs.Config{SectorSize: fatfs.SectorSize})
	if err := fat.Mount(); err != nil {
		return mapFatErr("mount", err)
	}
	defer func() {
		if uerr := fat.Unmount(); err == nil && uerr != nil {
			err = mapFatErr("unmount", uerr)
		}
	}()
	return fn(fat)
}

var errNoSpace = errors.New("no space left on volume")

func mapFatErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var fr fatfs.FileResult
	if errors.As(err, &fr) {
		switch fr {
		case fatfs.FileResultNoFile, fatfs.FileResultNoPath:
			return fmt.Errorf("fs %s: %w", op, fs.ErrNotExist)
		case fatfs.FileResultExist:
			return fmt.Errorf("fs %s: %w", op, fs.ErrExist)
		case fatfs.FileResultDenied, fatfs.FileResultLocked:
			return fmt.Errorf("fs %s: %w", op, fs.ErrPermission)
		case fatfs.FileResultNoFilesystem:
			return fmt.Errorf("fs %s: no FAT volume (run nordisk format): %w", op, fs.ErrInvalid)
		case fatfs.FileResultInvalidName, fatfs.FileResultInvalidParameter:
			return fmt.Errorf("fs %s: %w", op, fs.ErrInvalid)
		case fatfs.FileResultNotEnoughCore:
			return fmt.Errorf("fs %s: %w", op, errNoSpace)
		default:
			return fmt.Errorf("fs %s: %v", op, err)
		}
	}

	return fmt.Errorf("fs %s: %v", op, err)
}
