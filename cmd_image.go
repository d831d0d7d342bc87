package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"nordisk/flashui"
	"nordisk/simflash"
)

func newImageCmd(_ *app) *cobra.Command {
	imageCmd := &cobra.Command{
		Use:   "image",
		Short: "Manage simulated flash image files",
	}

	var (
		lf    layoutFlags
		force bool
	)
	createCmd := &cobra.Command{
		Use:   "create --image <file>",
		Short: "Create an erased flash image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := lf.imagePath()
			if err != nil {
				return err
			}
			l, err := lf.sectorLayout()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				if !force {
					return fmt.Errorf("image %q exists (use --force to replace it)", path)
				}
				if err := os.Remove(path); err != nil {
					return err
				}
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			fl, err := simflash.Open(path, l)
			if err != nil {
				return err
			}
			if err := fl.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %d sectors, %s at 0x%08X\n",
				path, len(l.Sectors), flashui.Human(int64(l.Size())), l.Base)
			return nil
		},
	}
	lf.bind(createCmd.Flags())
	createCmd.Flags().BoolVar(&force, "force", false, "replace an existing image")

	imageCmd.AddCommand(createCmd)
	return imageCmd
}
