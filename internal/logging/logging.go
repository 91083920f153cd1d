// Package logging holds the logger shared by every etcnome package.
package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once  sync.Once
	base  *logrus.Logger
	entry *logrus.Entry
)

func initLogger() {
	base = logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
	entry = base.WithField("name", "etcnome")
}

// GetProjectLogger returns the project wide logger.
func GetProjectLogger() *logrus.Entry {
	once.Do(initLogger)
	return entry
}

// SetLevel parses and applies a level name such as "debug" or "warn".
func SetLevel(name string) error {
	once.Do(initLogger)
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	base.SetLevel(lvl)
	return nil
}

// SetOutput redirects log output, typically to io.Discard in tests.
func SetOutput(w io.Writer) {
	once.Do(initLogger)
	base.SetOutput(w)
}
