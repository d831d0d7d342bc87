//go:build !cgo

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// The FAT filesystem layer is FatFs compiled through cgo.
func newFSCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fs",
		Short: "Access files on the FAT volume (requires a cgo build)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return errors.New("fs commands need a cgo build")
		},
	}
}
