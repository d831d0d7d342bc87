//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package simflash

import (
	"fmt"
	"io"
	"os"
)

// mapImage loads the image into memory; the release function writes it
// back.
func mapImage(file *os.File, size int) ([]byte, func() error, error) {
	mem := make([]byte, size)
	if _, err := file.ReadAt(mem, 0); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("read flash image %q: %w", file.Name(), err)
	}
	flush := func() error {
		if _, err := file.WriteAt(mem, 0); err != nil {
			return fmt.Errorf("write flash image %q: %w", file.Name(), err)
		}
		return file.Sync()
	}
	return mem, flush, nil
}
