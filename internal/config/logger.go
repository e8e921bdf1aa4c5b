package config

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the log settings.
func NewLogger(c LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	switch c.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	return logger, nil
}
