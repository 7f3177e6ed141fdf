package ak09916

import "github.com/sirupsen/logrus"

// Observer is told about events the driver does not return as errors.
type Observer interface {
	// IDMismatch is called after each failed identity check.
	IDMismatch(id byte, remaining int)
	SetupDone(attempts int)
	SetupFailed(err error)
	CalibrationInvalid(raw [3]byte)
	// NotReady is called for every frame dropped for lack of DRDY.
	NotReady()
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) IDMismatch(byte, int)       {}
func (NopObserver) SetupDone(int)              {}
func (NopObserver) SetupFailed(error)          {}
func (NopObserver) CalibrationInvalid([3]byte) {}
func (NopObserver) NotReady()                  {}

// LogObserver writes events to a logrus logger.
type LogObserver struct {
	Log logrus.FieldLogger
}

// NewLogObserver returns a LogObserver tagged with the device name.
func NewLogObserver(l logrus.FieldLogger) LogObserver {
	return LogObserver{Log: l.WithField("device", "AK09916")}
}

func (o LogObserver) IDMismatch(id byte, remaining int) {
	o.Log.WithFields(logrus.Fields{
		"id":        id,
		"want":      DeviceID,
		"remaining": remaining,
	}).Warn("bad device id, resetting i2c master")
}

func (o LogObserver) SetupDone(attempts int) {
	o.Log.WithField("attempts", attempts).Info("magnetometer initialized")
}

func (o LogObserver) SetupFailed(err error) {
	o.Log.WithError(err).Error("failed to initialize, disabled")
}

func (o LogObserver) CalibrationInvalid(raw [3]byte) {
	o.Log.WithField("asa", raw).Warn("fuse rom sensitivity adjustment not programmed")
}

func (o LogObserver) NotReady() {
	o.Log.Debug("frame not ready")
}
