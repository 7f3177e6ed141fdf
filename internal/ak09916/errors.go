package ak09916

import "errors"

var (
	// ErrIDMismatch means WIA2 did not read back DeviceID. Setup retries it
	// and only surfaces it wrapped in ErrInitFailed.
	ErrIDMismatch = errors.New("ak09916: device id mismatch")

	// ErrInitFailed is returned by Setup once all attempts are used up.
	// The host I2C master is disabled when this is returned.
	ErrInitFailed = errors.New("ak09916: initialization failed, auxiliary master disabled")

	// ErrCalibrationInvalid means a fuse byte read as 0x00 or 0xFF.
	ErrCalibrationInvalid = errors.New("ak09916: invalid sensitivity adjustment")

	ErrBridgeBusy    = errors.New("ak09916: bridge reprogrammed while enabled")
	ErrTransferSize  = errors.New("ak09916: transfer size out of range")
	ErrRegisterRange = errors.New("ak09916: register address out of range")
	ErrShortFrame    = errors.New("ak09916: short frame")

	// ErrNotStreaming is returned by ReadFrame when the bridge is not
	// refreshing the ST1..ST2 window, so EXT_SLV_SENS_DATA holds a stale frame.
	ErrNotStreaming = errors.New("ak09916: frame window not armed")
)
