// Package kdf turns a user password into fixed-length key material using
// Argon2id, and verifies passwords against a stored hash in constant time.
//
// Two independent derivations are expected per vault: one producing the
// password-verification hash and one producing the key-encryption key. The
// caller guarantees domain separation by never reusing a salt across the two
// purposes.
package kdf

import (
	"crypto/subtle"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. These are fixed for the lifetime of metadata version 1;
// changing them invalidates every stored password hash and wrapped key.
const (
	ArgonTime    uint32 = 3
	ArgonMemory  uint32 = 64 * 1024 // KiB, i.e. 64 MiB
	ArgonThreads uint8  = 4

	// KeyLen is the output length for both the verification hash and the KEK.
	KeyLen uint32 = 32

	// SaltLen is the required salt length in bytes.
	SaltLen = 32
)

// Derive computes an Argon2id digest of password under salt. The salt must be
// exactly SaltLen bytes; anything else is a caller bug surfaced as an error
// before any derivation work happens. The returned slice is freshly allocated
// and owned by the caller, who is responsible for wiping it.
func Derive(password, salt []byte) ([]byte, error) {
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltLen, len(salt))
	}
	return argon2.IDKey(password, salt, ArgonTime, ArgonMemory, ArgonThreads, KeyLen), nil
}

// Verify derives a hash from password and salt and compares it against
// expectedHash without leaking the position of the first mismatch. A length
// mismatch returns false immediately; length is not secret.
func Verify(password, salt, expectedHash []byte) bool {
	if len(expectedHash) != int(KeyLen) {
		return false
	}
	derived, err := Derive(password, salt)
	if err != nil {
		return false
	}
	defer memguard.WipeBytes(derived)

	return subtle.ConstantTimeCompare(derived, expectedHash) == 1
}
