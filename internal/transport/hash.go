package transport

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

const hashBufSize = 32 * 1024

// Hash returns the hex-encoded BLAKE3 digest of the file at e, using the
// backend's native Hasher when it has one.
func Hash(e Entry) (string, error) {
	if h, ok := e.backend.(Hasher); ok {
		return h.Hash(e.path)
	}
	r, err := e.backend.OpenRead(e.path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", e.path, err)
	}
	defer r.Close()
	return hashReader(r)
}

// hashReader computes a BLAKE3 hash from an io.Reader.
func hashReader(r io.Reader) (string, error) {
	h := blake3.New()
	buf := make([]byte, hashBufSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
