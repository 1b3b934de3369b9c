package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subosito/gotenv"
)

// Logger is usable before Init; it then writes text logs to stderr.
var Logger = logrus.New()

type Options struct {
	Level string
	// Dir receives one log file per day. Empty disables file output.
	Dir string
	// Console is mirrored next to the file. Nil keeps console output off.
	Console io.Writer
}

func Init(opts Options) error {
	Logger = logrus.New()

	// .env is optional for both binaries.
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env variables: %w", err)
	}

	appEnv := strings.ToLower(os.Getenv("APP_ENV"))

	//default environment is development
	if appEnv == "" {
		appEnv = "development"
	}
	if appEnv == "production" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	Logger.SetLevel(ParseLevel(opts.Level))

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	if opts.Dir != "" {
		currentDate := time.Now().Format("02_01_2006")
		fullPath := filepath.Join(opts.Dir, currentDate+".log")

		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		Logger.SetOutput(io.Discard)
	case 1:
		Logger.SetOutput(writers[0])
	default:
		Logger.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warning", "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
