package flashdrv

import "errors"

// Driver errors.
var (
	// ErrNotReady indicates the driver has not been initialized.
	ErrNotReady = errors.New("flashdrv: not ready")

	// ErrWriteProtected indicates another read or write is in progress.
	ErrWriteProtected = errors.New("flashdrv: write protected")

	// ErrInvalidParameter indicates a bad buffer, count, range or command.
	ErrInvalidParameter = errors.New("flashdrv: invalid parameter")

	// ErrIO indicates a hardware or geometry failure while writing.
	ErrIO = errors.New("flashdrv: read/write error")

	// ErrInvalidConfig is wrapped by Init when a configuration is rejected.
	ErrInvalidConfig = errors.New("flashdrv: invalid configuration")
)

// Result is the numeric disk result code used by FatFs-style diskio layers.
type Result uint8

// Result codes.
const (
	ResultOK               Result = iota // Successful
	ResultError                          // R/W error
	ResultWriteProtected                 // Write protected
	ResultNotReady                       // Not ready
	ResultInvalidParameter               // Invalid parameter
)

// String returns a string representation of the result code.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	case ResultWriteProtected:
		return "write protected"
	case ResultNotReady:
		return "not ready"
	case ResultInvalidParameter:
		return "invalid parameter"
	default:
		return "unknown"
	}
}

// Err returns the error corresponding to the result code.
func (r Result) Err() error {
	switch r {
	case ResultOK:
		return nil
	case ResultWriteProtected:
		return ErrWriteProtected
	case ResultNotReady:
		return ErrNotReady
	case ResultInvalidParameter:
		return ErrInvalidParameter
	default:
		return ErrIO
	}
}

// ResultOf maps an error returned by the driver to its result code.
// Unknown errors map to ResultError.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNotReady):
		return ResultNotReady
	case errors.Is(err, ErrWriteProtected):
		return ResultWriteProtected
	case errors.Is(err, ErrInvalidParameter):
		return ResultInvalidParameter
	default:
		return ResultError
	}
}
