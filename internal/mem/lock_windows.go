//go:build windows

package mem

// Windows has no process-wide mlockall equivalent; per-buffer locking is
// handled by memguard. Report partial protection.
func lockPages() (Level, error) {
	return LevelPartial, nil
}

func unlockPages() error {
	return nil
}
