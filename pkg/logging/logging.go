package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	level   = logrus.InfoLevel
	loggers []*logrus.Logger
)

// NewLogger returns a logger tagged with loggerName. Loggers are usually created once per package
// and stored in a package level variable.
func NewLogger(loggerName string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	loggers = append(loggers, logger)
	return logger.WithField("logger", loggerName)
}

// SetLevel changes the level of every logger, including the ones already created.
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	level = lvl
	for _, logger := range loggers {
		logger.SetLevel(lvl)
	}
	return nil
}
