package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const lockSuffix = audioExt + ".lock"

// LockManager tracks per-clip claim markers as empty files under the lock
// directory. Markers coordinate the upload handlers and the worker, which run
// on different goroutines, through atomic create/delete filesystem semantics.
// Markers are not liveness indicators: ClearAll runs at startup and shutdown,
// and SweepStale reclaims markers a crashed run left behind.
type LockManager struct {
	dir string
}

func NewLockManager(dir string) *LockManager {
	return &LockManager{dir: dir}
}

func (m *LockManager) path(id string) string {
	return filepath.Join(m.dir, id+lockSuffix)
}

// Claim creates the marker for id. It reports true when the claim was newly
// acquired and false when another path already holds it.
func (m *LockManager) Claim(id string) (bool, error) {
	f, err := os.OpenFile(m.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
	return true, f.Close()
}

// Release removes the marker for id. Releasing an absent marker is a no-op.
func (m *LockManager) Release(id string) error {
	if err := os.Remove(m.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release %s: %w", id, err)
	}
	return nil
}

func (m *LockManager) IsClaimed(id string) bool {
	_, err := os.Stat(m.path(id))
	return err == nil
}

// ClearAll deletes every marker. Runs at startup and on clean shutdown so the
// pipeline never begins with a claim it cannot explain.
func (m *LockManager) ClearAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// SweepStale removes markers older than maxAge and returns the freed clip ids.
// A marker that old can only belong to a crashed run; sweeping it lets the
// next scan re-claim the item without waiting for a restart.
func (m *LockManager) SweepStale(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cutoff := time.Now().Add(-maxAge)
	var freed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, lockSuffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !os.IsNotExist(err) {
			return freed, err
		}
		freed = append(freed, strings.TrimSuffix(name, lockSuffix))
	}
	return freed, nil
}
