// Package mem provides best-effort protection against key material being
// swapped to disk by locking the process address space where the platform
// allows it.
package mem

// Level reports how much page-locking protection was achieved.
type Level int

const (
	LevelNone    Level = iota // no protection available
	LevelPartial              // some measures applied, pages may still swap
	LevelFull                 // current and future pages locked in RAM
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "full"
	case LevelPartial:
		return "partial"
	default:
		return "none"
	}
}

// LockPages asks the OS to keep the process's pages resident. Failure is not
// fatal; callers downgrade to partial protection and continue.
func LockPages() (Level, error) {
	return lockPages()
}

// UnlockPages releases page locks if any were taken.
func UnlockPages() error {
	return unlockPages()
}
