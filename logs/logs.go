// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logs wires up subsystem loggers for the wallet daemon, one
// per SPEC_FULL.md component, backed by decred/slog with optional
// rotation via jrick/logrotate, the same stack the teacher's logger
// package wires up per subsystem tag.
package logs

import (
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Tags names each subsystem's four-letter backend tag.
const (
	TagWallet      = "WLLT"
	TagPeerManager = "PRMG"
	TagAddrMgr     = "ADMG"
	TagChainCfg    = "CHNP"
	TagStore       = "STOR"
)

var (
	backendLog = slog.NewBackend(os.Stdout)
	logRotator *rotator.Rotator

	subsystems = map[string]slog.Logger{
		TagWallet:      backendLog.Logger(TagWallet),
		TagPeerManager: backendLog.Logger(TagPeerManager),
		TagAddrMgr:     backendLog.Logger(TagAddrMgr),
		TagChainCfg:    backendLog.Logger(TagChainCfg),
		TagStore:       backendLog.Logger(TagStore),
	}
)

func init() {
	for _, l := range subsystems {
		l.SetLevel(slog.LevelInfo)
	}
}

// Logger returns the named subsystem's logger. Panics on an unknown tag
// since that indicates a programming error, not a runtime condition.
func Logger(tag string) slog.Logger {
	l, ok := subsystems[tag]
	if !ok {
		panic("logs: unknown subsystem tag " + tag)
	}
	return l
}

// SetLevel sets every subsystem logger to level, parsed by slog (e.g.
// "trace", "debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return errInvalidLogLevel
	}
	for _, l := range subsystems {
		l.SetLevel(lvl)
	}
	return nil
}

// InitLogRotator starts writing logs to logFile in addition to stdout,
// rotating it past maxRollFiles past 10MB, mirroring the teacher's
// daemon-level log setup.
func InitLogRotator(logFile string, maxRollFiles int) error {
	r, err := rotator.New(logFile, 10*1024, false, maxRollFiles)
	if err != nil {
		return err
	}
	logRotator = r
	backendLog = slog.NewBackend(io.MultiWriter(os.Stdout, logWriter{}))
	for tag := range subsystems {
		l := backendLog.Logger(tag)
		l.SetLevel(subsystems[tag].Level())
		subsystems[tag] = l
	}
	return nil
}

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	logRotator.Write(p)
	return len(p), nil
}
