package logger

import (
	"fmt"
	stdlog "log"
	"os"
	"path"
	"path/filepath"

	"github.com/op/go-logging"
)

// InitLogger creates and returns a logger that writes human-readable
// messages to a per-process log file under logDir. Also returns the
// path to the log file.
func InitLogger(logDir string, logLevel logging.Level) (*logging.Logger, string) {
	processName := path.Base(os.Args[0])
	filename := filepath.Join(logDir, fmt.Sprintf("%s.log", processName))
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file '%s': %v\n", filename, err)
		os.Exit(1)
	}
	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("[%{level}] %{message}")
	logging.SetFormatter(format)
	logging.SetLevel(logLevel, processName)
	backend := logging.NewLogBackend(writer, "", stdlog.LstdFlags|stdlog.LUTC)
	logging.SetBackend(backend)
	return log, filename
}

// DiscardLogger returns a logger that writes nothing. Tests use this
// when they need a Context but don't care about log output.
func DiscardLogger() *logging.Logger {
	log := logging.MustGetLogger("discard")
	backend := logging.NewLogBackend(devNull{}, "", 0)
	logging.SetBackend(backend)
	return log
}

type devNull struct{}

func (devNull) Write(p []byte) (int, error) {
	return len(p), nil
}
