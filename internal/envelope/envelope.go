// Package envelope wraps and unwraps the vault's data encryption key (DEK)
// under a password-derived key-encryption key (KEK) using ChaCha20-Poly1305.
//
// The ciphertext is bound to its purpose through fixed associated data, so a
// blob produced for any other context fails authentication here even when the
// same KEK was used. Both operations take ownership of the KEK argument and
// wipe it before returning, success or failure.
package envelope

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the size of both the DEK and the KEK.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the AEAD nonce length; a fresh random nonce is generated
	// per wrap and must never repeat for a given KEK.
	NonceSize = chacha20poly1305.NonceSize

	// WrappedSize is the DEK ciphertext length: 32 key bytes plus the
	// 16-byte Poly1305 tag.
	WrappedSize = KeySize + chacha20poly1305.Overhead
)

// dekContext is the associated data binding wrapped DEKs to this use-case
// and scheme version.
const dekContext = "vault:dek:v1"

// ErrAuthentication is returned when the AEAD tag does not verify, which
// means the ciphertext was tampered with or the KEK is wrong.
var ErrAuthentication = errors.New("envelope: authentication failed")

// WrapDEK encrypts a 32-byte DEK under a 32-byte KEK. It returns the 48-byte
// ciphertext and the 12-byte random nonce used. The KEK is wiped before
// WrapDEK returns.
func WrapDEK(dek, kek []byte) (wrapped, nonce []byte, err error) {
	defer memguard.WipeBytes(kek)

	if len(dek) != KeySize {
		return nil, nil, fmt.Errorf("dek must be %d bytes, got %d", KeySize, len(dek))
	}
	if len(kek) != KeySize {
		return nil, nil, fmt.Errorf("kek must be %d bytes, got %d", KeySize, len(kek))
	}

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	wrapped = aead.Seal(nil, nonce, dek, []byte(dekContext))
	return wrapped, nonce, nil
}

// UnwrapDEK decrypts a wrapped DEK. Input lengths are validated explicitly
// before the cipher is touched; the cipher would reject malformed input
// anyway, but a length error should read as validation, not as tampering.
// On success the returned DEK is a fresh copy owned by the caller. The KEK
// and the AEAD working buffer are wiped regardless of outcome.
func UnwrapDEK(wrapped, kek, nonce []byte) ([]byte, error) {
	defer memguard.WipeBytes(kek)

	if len(wrapped) != WrappedSize {
		return nil, fmt.Errorf("wrapped dek must be %d bytes, got %d", WrappedSize, len(wrapped))
	}
	if len(kek) != KeySize {
		return nil, fmt.Errorf("kek must be %d bytes, got %d", KeySize, len(kek))
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, wrapped, []byte(dekContext))
	if err != nil {
		return nil, ErrAuthentication
	}

	dek := make([]byte, len(plaintext))
	copy(dek, plaintext)
	memguard.WipeBytes(plaintext)

	return dek, nil
}
