package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Digest is the hash function used to chain entries. A ledger must be
// verified with the digest it was written with.
type Digest struct {
	Name string
	new  func() hash.Hash
}

var (
	// SHA256 is the default digest.
	SHA256 = Digest{Name: "sha256", new: sha256.New}
	// BLAKE2b256 is BLAKE2b with a 32-byte output.
	BLAKE2b256 = Digest{Name: "blake2b-256", new: func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for keys over 64 bytes
		return h
	}}
)

// DigestByName resolves a digest from its configuration name.
func DigestByName(name string) (Digest, error) {
	switch name {
	case "", SHA256.Name:
		return SHA256, nil
	case BLAKE2b256.Name, "blake2b":
		return BLAKE2b256, nil
	}
	return Digest{}, fmt.Errorf("ledger: unknown digest %q", name)
}

// Sum returns the lowercase hex digest of b.
func (d Digest) Sum(b []byte) string {
	h := d.new()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
