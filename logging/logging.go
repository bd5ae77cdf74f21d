package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	// logrus level name. Defaults to info
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Defaults to stderr
	Output io.Writer `yaml:"-"`
}

func New(config Config) (logger *logrus.Logger, err error) {
	logger = logrus.New()

	level := logrus.InfoLevel
	if config.Level != "" {
		level, err = logrus.ParseLevel(config.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse level: %w", err)
		}
	}
	logger.SetLevel(level)

	switch config.Format {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}
	return logger, nil
}
