// internal/session/passkey.go
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for stored passkeys. Changing any of them invalidates
// every stored hospital passkey hash.
const (
	passkeySaltBytes = 16
	passkeyKeyBytes  = 32
	argonTime        = 1
	argonMemoryKiB   = 64 * 1024
	argonThreads     = 4
)

var passkeyEncoding = base64.StdEncoding

// HashPasskey returns a base64 Argon2id hash of passkey and the random salt
// it was derived with.
func HashPasskey(passkey string) (hash string, salt string, err error) {
	rawSalt := make([]byte, passkeySaltBytes)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate passkey salt: %w", err)
	}
	return passkeyEncoding.EncodeToString(derivePasskey(passkey, rawSalt)), passkeyEncoding.EncodeToString(rawSalt), nil
}

// VerifyPasskey reports whether passkey matches a hash from HashPasskey.
// A stored hash of the wrong length never matches.
func VerifyPasskey(passkey, salt, hash string) (bool, error) {
	rawSalt, err := passkeyEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode passkey salt: %w", err)
	}
	stored, err := passkeyEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode passkey hash: %w", err)
	}
	if len(stored) != passkeyKeyBytes {
		return false, nil
	}
	return subtle.ConstantTimeCompare(stored, derivePasskey(passkey, rawSalt)) == 1, nil
}

func derivePasskey(passkey string, salt []byte) []byte {
	return argon2.IDKey([]byte(passkey), salt, argonTime, argonMemoryKiB, argonThreads, passkeyKeyBytes)
}
