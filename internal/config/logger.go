package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// GetLogger returns the process-wide logger.
func GetLogger() *logrus.Logger {
	return logg
}

// Logger returns an entry tagged with the component name, e.g.
// Logger("reconciliation").
func Logger(component string) *logrus.Entry {
	return logg.WithField("component", component)
}

// SetLogLevel parses level (debug, info, warn, error) and applies it. Unknown
// values leave the current level untouched and return false.
func SetLogLevel(level string) bool {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return false
	}
	logg.SetLevel(lvl)
	return true
}

// LogError logs err with the module/function context used across the service.
func LogError(entry *logrus.Entry, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	entry.WithFields(fields).Error(err.Error())
}
