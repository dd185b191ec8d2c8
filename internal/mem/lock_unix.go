//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package mem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func lockPages() (Level, error) {
	err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
	if err != nil {
		// EPERM: RLIMIT_MEMLOCK too small or no capability. ENOSYS: not
		// implemented. Neither should stop the vault from operating.
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOSYS) {
			return LevelPartial, nil
		}
		return LevelNone, fmt.Errorf("failed to lock memory: %w", err)
	}
	return LevelFull, nil
}

func unlockPages() error {
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("failed to unlock memory: %w", err)
	}
	return nil
}
