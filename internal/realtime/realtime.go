// Package realtime raises the scheduling priority of the current process so
// the audio callback is less likely to be starved.
package realtime

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrUnsupported is returned on platforms without a priority knob.
var ErrUnsupported = errors.New("realtime: priority boost not supported on this platform")

// Boost raises the process priority and logs the outcome. Failure is not
// fatal; the metronome just runs at normal priority.
func Boost(log logrus.FieldLogger) bool {
	if err := boost(); err != nil {
		log.WithError(err).Warn("running at normal priority")
		return false
	}
	log.Debug("process priority raised")
	return true
}
