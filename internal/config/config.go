// Package config wires the CLI surface (spec.md §6) and logging setup
// shared by cmd/manager and cmd/worker: flag defaults, an optional YAML
// defaults file, and a structured logger.
package config

import (
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// LoadDefaults reads a YAML file of string-keyed flag defaults -- the
// same "flat map of paths/values" shape the teacher's own config.go
// used -- so an operator can pin per-environment defaults without
// repeating them on every invocation. The binaries look keys up by
// their string flag names (host, logfile, loglevel, shared_dir for the
// manager; host, manager-host, logfile, loglevel for the worker); the
// integer flags port and manager-port are read from the command line
// only, never from this file. CLI flags explicitly passed always win
// over a value loaded this way.
func LoadDefaults(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("config: read %s: %w", path, err)
	}
	var defaults map[string]string
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, xerrors.Errorf("config: parse %s: %w", path, err)
	}
	return defaults, nil
}

// NewLogger builds a logrus logger writing to logfile (or stderr when
// empty) at loglevel, carrying the given static fields on every entry --
// the structured-field equivalent of the original's
// "Role:{port} [%(levelname)s] %(message)s" formatter string.
func NewLogger(logfile, loglevel string, fields logrus.Fields) (*logrus.Entry, error) {
	logger := logrus.New()

	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, xerrors.Errorf("config: open logfile %s: %w", logfile, err)
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stderr)
	}

	level, err := logrus.ParseLevel(loglevel)
	if err != nil {
		return nil, xerrors.Errorf("config: parse loglevel %q: %w", loglevel, err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return logger.WithFields(fields), nil
}
