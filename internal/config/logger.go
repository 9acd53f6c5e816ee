package config

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	writersMu sync.Mutex
	writers   = make(map[string]*lumberjack.Logger)
)

// Writer returns the log destination: a rotating file when log.file is
// set, stderr otherwise. Loggers for the same file share one writer.
func (c LogConfig) Writer() io.Writer {
	if c.File == "" {
		return os.Stderr
	}

	writersMu.Lock()
	defer writersMu.Unlock()
	if w, ok := writers[c.File]; ok {
		return w
	}
	w := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	}
	writers[c.File] = w
	return w
}

// NewLogger creates a logger for one component, e.g. NewLogger("inbox")
// logs with the prefix "[inbox] ".
func (c LogConfig) NewLogger(component string) *log.Logger {
	return log.New(c.Writer(), "["+component+"] ", log.LstdFlags)
}

// CloseLogs closes open log files.
func CloseLogs() error {
	writersMu.Lock()
	defer writersMu.Unlock()
	var first error
	for name, w := range writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		delete(writers, name)
	}
	return first
}
