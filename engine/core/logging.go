package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var once sync.Once

type logger struct {
	*log.Logger
	file *lumberjack.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "ffbridge ",
			})
			l.SetLevel(log.InfoLevel)
			singleton = &logger{Logger: l}
		})
	return singleton
}

// LogConfig mirrors the [log] section of the configuration file.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// ConfigureLogging applies the level and, when a file is given, tees the
// output into a rotating log file.
func ConfigureLogging(cfg LogConfig) error {
	l := getLogger()
	if err := SetLogLevel(cfg.Level); err != nil {
		return err
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
		l.SetOutput(os.Stderr)
	}
	if cfg.File == "" {
		return nil
	}
	l.file = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	l.SetOutput(io.MultiWriter(os.Stderr, l.file))
	return nil
}

// SetLogLevel accepts debug, info, warn or error. Empty keeps the current level.
func SetLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, ErrInvalidParameter)
	}
	getLogger().SetLevel(lvl)
	return nil
}

// CloseLogging flushes and closes the file sink if one is open.
func CloseLogging() error {
	l := getLogger()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.SetOutput(os.Stderr)
	return err
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
