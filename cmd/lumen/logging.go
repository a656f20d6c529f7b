package main

import (
	"os"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

// logrusAdapter implements vm.Logger over a *logrus.Logger, the seam that
// keeps pkg/vm free of a direct logrus dependency: the CLI is the only
// place in this module that imports logrus.
type logrusAdapter struct {
	log *logrus.Logger
}

func (a logrusAdapter) Debugf(format string, args ...interface{}) {
	a.log.Debugf(format, args...)
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&easy.Formatter{
		TimestampFormat: "15:04:05",
		LogFormat:       "[%lvl%] %time% %msg%\n",
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}
