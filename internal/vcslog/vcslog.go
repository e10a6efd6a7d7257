// Package vcslog provides the shared structured logger injected into the
// repo/oplog/transaction layers, in the same spirit as the teacher's
// convention of passing a logger into long-lived components rather than
// calling a global log.Printf.
package vcslog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger = logrus.New()
)

// Init configures the package-level logger. Safe to call more than once;
// the last call wins. level is a logrus level name ("debug", "info",
// "warn", "error"); format is "text" or "json".
func Init(level, format string) error {
	mu.Lock()
	defer mu.Unlock()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger = l
	return nil
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// WithOp returns an entry tagged with the operation id a call site is
// crossing (write_operation, update_op_heads, rebase_descendants).
func WithOp(opID string) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{"op_id": opID})
}

// WithCommit returns an entry tagged with a commit id (write_commit and
// friends).
func WithCommit(commitID string) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{"commit_id": commitID})
}

// WithWorkspace returns an entry tagged with a workspace id.
func WithWorkspace(workspaceID string) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{"workspace_id": workspaceID})
}
