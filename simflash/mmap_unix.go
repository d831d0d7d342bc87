//go:build linux || darwin || freebsd || netbsd || openbsd

package simflash

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapImage maps size bytes of file shared and writable, so flash content
// is the file content.
func mapImage(file *os.File, size int) ([]byte, func() error, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap flash image %q: %w", file.Name(), err)
	}
	unmap := func() error {
		if err := unix.Msync(mem, unix.MS_SYNC); err != nil {
			_ = unix.Munmap(mem)
			return fmt.Errorf("msync flash image %q: %w", file.Name(), err)
		}
		if err := unix.Munmap(mem); err != nil {
			return fmt.Errorf("munmap flash image %q: %w", file.Name(), err)
		}
		return nil
	}
	return mem, unmap, nil
}
