package trace

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// NewRunID derives a fresh, unlinkable run identifier: a random seed
// stretched through HKDF-SHA3. Grounded on the teacher's
// core/planfmt.NewRunIDFactory (fresh random key per run, no
// correlation across runs), adapted from a 32-byte secret key to a
// printable hex run id suitable for a trace record's `runId` field.
func NewRunID() (string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("trace: failed to generate run seed: %w", err)
	}
	kdf := hkdf.New(sha3.New256, seed, nil, []byte("a0/trace/runid/v1"))
	out := make([]byte, 16)
	if _, err := kdf.Read(out); err != nil {
		return "", fmt.Errorf("trace: failed to derive run id: %w", err)
	}
	return hex.EncodeToString(out), nil
}
