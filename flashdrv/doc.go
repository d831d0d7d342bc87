// Package flashdrv exposes a region of memory-mapped NOR flash as a disk of
// fixed-size logical sectors, for use under a FAT filesystem.
//
// Physical erase sectors are usually larger than logical sectors and need
// not be aligned with them, and programming can only clear bits. A write
// therefore rebuilds the full image of each physical sector it touches,
// erases the sector only when some bit has to go from 0 back to 1, and
// programs only the words that change. Reads copy straight from the memory
// view.
//
// The flash controller is supplied by the caller as a HAL, or as a
// Callbacks closure set when individual operations need wrapping:
//
//	flash := simflash.New(simflash.Uniform(0x08000000, 32, 4))
//	drv, err := flashdrv.New(flashdrv.Config{
//	    Callbacks:         flashdrv.FromHAL(flash),
//	    Memory:            flash,
//	    StartDiskAddress:  0x08000000,
//	    EndDiskAddress:    0x08000080,
//	    LogicalSectorSize: 16,
//	})
//
// All hardware calls are synchronous. A StatusBusy answer is retried until
// the controller reports anything else; there is no timeout.
//
// # Errors
//
// Failures are returned as errors wrapping ErrNotReady, ErrWriteProtected,
// ErrInvalidParameter or ErrIO. ResultOf converts them to the numeric codes
// a FatFs diskio layer expects.
//
// A write spanning several physical sectors is not transactional. When a
// sector fails, the sectors before it have already been erased and
// programmed and are left that way.
//
// # Concurrency
//
// Read and Write share one in-progress flag set with an atomic
// compare-and-set. A call that finds it set returns ErrWriteProtected at
// once; callers that want to wait retry. Ioctl and IsWriteProtected never
// block.
package flashdrv
