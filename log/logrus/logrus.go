// Package logrus adapts logrus to castore.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/castore"
)

var _ castore.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=castore.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "castore")}
}

func (l Logger) Debug(msg string, f castore.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f castore.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f castore.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f castore.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' error key.
func (l Logger) with(f castore.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			k = logrus.ErrorKey
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
