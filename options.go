package vault

// Password policy applied at vault creation. The length floor is checked
// before anything else touches the password; the zxcvbn score gate runs after
// it. Neither is consulted again at unlock time, so an existing vault stays
// openable even if policy tightens later.
const (
	// MinPasswordLength is the hard floor; shorter passwords are rejected
	// before any key material is touched.
	MinPasswordLength = 8

	// MinPasswordScore is the minimum zxcvbn score (0-4) accepted at
	// creation.
	MinPasswordScore = 2
)

// Options configures a Service.
type Options struct {
	// LockMemory requests best-effort page locking for the whole process so
	// key material is less likely to reach swap. Failure degrades the
	// protection level, it does not fail construction.
	LockMemory bool
}

// DefaultOptions returns the configuration used when nothing is overridden.
func DefaultOptions() Options {
	return Options{
		LockMemory: true,
	}
}
