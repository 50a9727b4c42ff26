// Package obs wires up structured logging for the service.
package obs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/modelgate/modelgate/internal/config"
)

// Setup configures the standard logrus logger from config: level, JSON
// formatting, and rotated file output alongside stderr.
func Setup(cfg *config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return err
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return nil
}
