package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"fairplay/config"
	"fairplay/entropy"
)

// GenerateServerSeed returns a fresh hex secret and its sha256 commitment.
func GenerateServerSeed() (seed string, hash string, err error) {
	bytes := make([]byte, config.SecretBytes)
	if _, err = rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("read random secret: %w", err)
	}

	seed = hex.EncodeToString(bytes)
	hash = HashHex(seed)

	return
}

// HashHex is sha256 over the UTF-8 bytes of s, hex encoded.
func HashHex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// VerifySeed checks a revealed secret against its published commitment.
func VerifySeed(seed, hash string) bool {
	got := HashHex(seed)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// DeriveSeed computes sha256(secret ∥ blockHash ∥ timestamp ∥ label) over the
// concatenated strings. The timestamp is the decimal millisecond value.
func DeriveSeed(secret string, block entropy.BlockRecord, label string) string {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write([]byte(block.Hash))
	h.Write([]byte(block.Timestamp()))
	h.Write([]byte(label))
	return hex.EncodeToString(h.Sum(nil))
}

// IsSeed reports whether s has the shape of a derived seed.
func IsSeed(s string) bool {
	if len(s) != config.SeedHexLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
