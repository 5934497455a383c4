package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// Lock is the cross-process advisory lock guarding a workspace's store.
// It combines gofrs/flock's OS-level advisory lock (for the common case
// of concurrent codelens processes) with a PID file used purely for
// stale-owner diagnostics and reclamation: the first time the flock is
// found held, Lock checks whether the PID recorded in the lock's sibling
// .pid file still exists, and if not, clears the lock files and tries
// again rather than waiting on a lock its owner can never release.
// Otherwise it retries every 25ms until the timeout, then fails with
// ErrCodeLockTimeout.
//
// Adapted from the teacher's embed.FileLock (the flock wrapper) and
// daemon.PIDFile (the stale-owner detection via signal-0).
type Lock struct {
	path    string
	pidPath string
	fl      *flock.Flock
	timeout time.Duration
}

// NewLock creates a lock rooted at <dir>/.lock (with a sibling
// <dir>/.lock.pid for stale-owner detection).
func NewLock(dir string, timeout time.Duration) *Lock {
	path := filepath.Join(dir, ".lock")
	return &Lock{
		path:    path,
		pidPath: path + ".pid",
		fl:      flock.New(path),
		timeout: timeout,
	}
}

// WithExclusive acquires the exclusive lock, runs fn, and always releases
// the lock afterward — even if fn panics the deferred Unlock still runs
// (the panic itself is not recovered, it propagates after unlock).
func (l *Lock) WithExclusive(ctx context.Context, opName string, fn func() error) error {
	if err := l.acquire(ctx, true); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

// WithShared acquires a shared (read) lock, runs fn, and releases it.
func (l *Lock) WithShared(ctx context.Context, opName string, fn func() error) error {
	if err := l.acquire(ctx, false); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

func (l *Lock) acquire(ctx context.Context, exclusive bool) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	deadline := time.Now().Add(l.timeout)
	reclaimed := false

	for {
		var ok bool
		var err error
		if exclusive {
			ok, err = l.fl.TryLock()
		} else {
			ok, err = l.fl.TryRLock()
		}
		if err != nil {
			return codelenserrors.Wrap(codelenserrors.ErrCodeLockTimeout, err)
		}
		if ok {
			l.writePID()
			return nil
		}

		if !reclaimed && l.ownerIsDead() {
			reclaimed = true
			l.forceClear()
			continue
		}

		if time.Now().After(deadline) {
			return codelenserrors.New(codelenserrors.ErrCodeLockTimeout,
				fmt.Sprintf("timed out acquiring lock %s after %s", l.path, l.timeout), nil)
		}
		select {
		case <-ctx.Done():
			return codelenserrors.Wrap(codelenserrors.ErrCodeLockTimeout, ctx.Err())
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (l *Lock) release() {
	_ = l.fl.Unlock()
	_ = os.Remove(l.pidPath)
}

func (l *Lock) writePID() {
	_ = os.WriteFile(l.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ownerIsDead reads the PID file and reports whether the process it names
// is no longer running, via FindProcess + signal-0 the same way the
// teacher's daemon.PIDFile.IsRunning does.
func (l *Lock) ownerIsDead() bool {
	data, err := os.ReadFile(l.pidPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	return proc.Signal(syscall.Signal(0)) != nil
}

// forceClear removes the lock and PID files left by a dead owner so the
// next TryLock attempt can succeed.
func (l *Lock) forceClear() {
	_ = os.Remove(l.path)
	_ = os.Remove(l.pidPath)
	l.fl = flock.New(l.path)
}
