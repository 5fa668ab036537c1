package domain

import (
	"crypto/md5"  //nolint:gosec // Supported for sites that publish MD5 digests.
	"crypto/sha1" //nolint:gosec // Supported for sites that publish SHA1 digests.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// hashChunkSize is the read size used when digesting streams.
const hashChunkSize = 64 * 1024

// HashType identifies a supported checksum algorithm.
type HashType string

// Supported checksum algorithms.
const (
	HashMD5    HashType = "md5"
	HashSHA1   HashType = "sha1"
	HashSHA256 HashType = "sha256"
	HashSHA512 HashType = "sha512"
)

// Hasher returns a new hash.Hash for the hash type.
func (t HashType) Hasher() (hash.Hash, error) {
	switch t {
	case HashMD5:
		return md5.New(), nil //nolint:gosec // Verification only, chosen by the site.
	case HashSHA1:
		return sha1.New(), nil //nolint:gosec // Verification only, chosen by the site.
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHashType, string(t))
	}
}

// Checksum declares an expected digest for fetched content.
// When a Content carries at least one Checksum, the fetched bytes must
// verify against it before the artifacts are considered valid.
type Checksum struct {
	// Type is the checksum algorithm.
	Type HashType

	// Digest is the expected hex digest.
	Digest string
}

// HashReader computes the requested digests over a reader in a single pass.
// The returned map keys are the requested hash types, values are hex digests.
func HashReader(r io.Reader, types ...HashType) (map[HashType]string, error) {
	hashers := make(map[HashType]hash.Hash, len(types))
	for _, t := range types {
		h, err := t.Hasher()
		if err != nil {
			return nil, err
		}
		hashers[t] = h
	}

	buf := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, h := range hashers {
				h.Write(buf[:n])
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
	}

	digests := make(map[HashType]string, len(hashers))
	for t, h := range hashers {
		digests[t] = hex.EncodeToString(h.Sum(nil))
	}
	return digests, nil
}

// HashFile computes the requested digests for a file in a single pass.
func HashFile(path string, types ...HashType) (map[HashType]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return HashReader(f, types...)
}
