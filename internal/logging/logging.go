package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely the service logs.
type Options struct {
	Level string
	// File enables a rotating log file next to stdout when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (o Options) rotation() *lumberjack.Logger {
	maxSize := o.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	backups := o.MaxBackups
	if backups <= 0 {
		backups = 5
	}
	age := o.MaxAgeDays
	if age <= 0 {
		age = 28
	}
	return &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    maxSize,
		MaxBackups: backups,
		MaxAge:     age,
		Compress:   true,
	}
}

// New builds a JSON logger. The returned closer flushes the log file, if any.
func New(opts Options, stdout io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	level := logrus.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		parsed, err := logrus.ParseLevel(s)
		if err != nil {
			return nil, nil, err
		}
		level = parsed
	}
	log.SetLevel(level)

	if stdout == nil {
		stdout = os.Stdout
	}
	if strings.TrimSpace(opts.File) == "" {
		log.SetOutput(stdout)
		return log, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, err
	}
	file := opts.rotation()
	log.SetOutput(io.MultiWriter(stdout, file))
	return log, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
