package inventory

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrLocked is returned when another scan holds the lock.
var ErrLocked = errors.New("another scan is in progress")

// LockPath is the advisory lock file guarding the snapshot at path.
func LockPath(snapshotPath string) string { return snapshotPath + ".lock" }

// AcquireLock takes an exclusive, non-blocking OS lock on the lock file
// for snapshotPath. The kernel drops the lock when the holder exits, so a
// crashed scan never blocks the next one. The file itself is left in place
// and only records the holder's pid. The returned function releases the
// lock.
func AcquireLock(snapshotPath string) (func() error, error) {
	path := LockPath(snapshotPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}
	if err := tryLockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if err := errors.Join(unlockErr, closeErr); err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		return nil
	}, nil
}
