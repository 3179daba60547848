// Package hasher provides streaming content hashing for the engine. The
// algorithm identifier travels with every manifest so future migrations
// stay explicit.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Registered algorithm identifiers.
const (
	SHA256     = "sha256"
	BLAKE2b256 = "blake2b-256"
)

// Default is the algorithm new manifests are written with.
const Default = SHA256

// chunkSize bounds per-read memory while hashing.
const chunkSize = 128 * 1024

// Hasher computes hex digests with a fixed, named algorithm.
type Hasher struct {
	algorithm string
}

// New returns a Hasher for the named algorithm.
func New(algorithm string) (*Hasher, error) {
	switch algorithm {
	case SHA256, BLAKE2b256:
		return &Hasher{algorithm: algorithm}, nil
	default:
		return nil, fmt.Errorf("%w: unknown hash algorithm %q", wcbterrors.ErrSchemaUnsupported, algorithm)
	}
}

// Algorithm returns the algorithm identifier stored in manifests.
func (h *Hasher) Algorithm() string { return h.algorithm }

// NewDigest returns a fresh digest for one stream.
func (h *Hasher) NewDigest() hash.Hash {
	switch h.algorithm {
	case BLAKE2b256:
		d, _ := blake2b.New256(nil)
		return d
	default:
		return sha256.New()
	}
}

// HashFile streams the file at path and returns its hex digest and byte
// count. Open and read failures map to unreadable with the cause attached.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: open %s: %v", wcbterrors.ErrUnreadable, path, err)
	}
	defer f.Close()

	digest, n, err := h.HashReader(f)
	if err != nil {
		return "", n, fmt.Errorf("%w: read %s: %v", wcbterrors.ErrUnreadable, path, err)
	}
	return digest, n, nil
}

// HashReader consumes r in bounded chunks and returns the hex digest and
// byte count.
func (h *Hasher) HashReader(r io.Reader) (string, int64, error) {
	d := h.NewDigest()
	n, err := io.CopyBuffer(d, r, make([]byte, chunkSize))
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(d.Sum(nil)), n, nil
}
