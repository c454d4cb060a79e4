package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// Algorithm selects the hash used for post-download verification.
type Algorithm int

const (
	None Algorithm = iota
	MD5
	SHA1
	SHA256
	SHA512
	CRC32
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	case CRC32:
		return "crc32"
	}
	return "unknown"
}

// Parse maps a user-supplied algorithm name to an Algorithm.
func Parse(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	case "crc32":
		return CRC32, nil
	}
	return None, fmt.Errorf("unknown checksum algorithm: %s", name)
}

// ParseSpec splits an "algorithm:hexdigest" flag value.
func ParseSpec(spec string) (Algorithm, string, error) {
	if spec == "" {
		return None, "", nil
	}
	i := strings.IndexByte(spec, ':')
	if i < 0 {
		return None, "", fmt.Errorf("checksum must be algorithm:hexdigest, got %q", spec)
	}
	algo, err := Parse(spec[:i])
	if err != nil {
		return None, "", err
	}
	digest := strings.TrimSpace(spec[i+1:])
	if algo != None && digest == "" {
		return None, "", fmt.Errorf("checksum digest missing in %q", spec)
	}
	return algo, digest, nil
}

// New returns a fresh hasher for the algorithm. None has no hasher.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case CRC32:
		return crc32.NewIEEE(), nil
	}
	return nil, fmt.Errorf("no hasher for algorithm %q", a)
}

// File hashes the full contents of the file at path.
func File(path string, a Algorithm) ([]byte, error) {
	h, err := a.New()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file for hashing: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("error hashing file: %w", err)
	}
	return h.Sum(nil), nil
}

// Matches compares the file's hash against a hex-encoded expected digest.
func Matches(path string, a Algorithm, expectedHex string) (bool, error) {
	want, err := hex.DecodeString(strings.TrimSpace(expectedHex))
	if err != nil {
		return false, fmt.Errorf("invalid expected checksum: %w", err)
	}
	got, err := File(path, a)
	if err != nil {
		return false, err
	}
	if len(want) != len(got) {
		return false, nil
	}
	for i := range want {
		if want[i] != got[i] {
			return false, nil
		}
	}
	return true, nil
}
