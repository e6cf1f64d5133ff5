// Package log is a thin wrapper around a package-level zap logger,
// toggled verbose/quiet the way the teacher's SetVerbose(bool) toggled
// between io.Discard and os.Stderr stdlib loggers — just backed by
// go.uber.org/zap instead, matching how uber-kraken's binaries
// configure zap per-run (tracker/cmd/config.go's zap.Config).
package log

import (
	"go.uber.org/zap"
)

var logger = newLogger(false)

func newLogger(verbose bool) *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	cfg := zap.NewDevelopmentConfig()
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetVerbose swaps the package logger between a no-op core and a
// console-encoded development core.
func SetVerbose(v bool) {
	logger = newLogger(v)
}

func Infof(template string, args ...interface{})  { logger.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { logger.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { logger.Errorf(template, args...) }
func Debugf(template string, args ...interface{}) { logger.Debugf(template, args...) }
