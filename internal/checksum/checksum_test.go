package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"md5", MD5, false},
		{"SHA256", SHA256, false},
		{" sha512 ", SHA512, false},
		{"crc32", CRC32, false},
		{"", None, false},
		{"none", None, false},
		{"sha3", None, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in         string
		wantAlgo   Algorithm
		wantDigest string
		wantErr    bool
	}{
		{"", None, "", false},
		{"sha256:abc123", SHA256, "abc123", false},
		{"md5:d41d8cd98f00b204e9800998ecf8427e", MD5, "d41d8cd98f00b204e9800998ecf8427e", false},
		{"sha256", None, "", true},
		{"sha256:", None, "", true},
		{"bogus:abc", None, "", true},
	}
	for _, tt := range tests {
		algo, digest, err := ParseSpec(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSpec(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if algo != tt.wantAlgo || digest != tt.wantDigest {
			t.Errorf("ParseSpec(%q) = (%v, %q), want (%v, %q)", tt.in, algo, digest, tt.wantAlgo, tt.wantDigest)
		}
	}
}

func TestMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		algo   Algorithm
		digest string
		want   bool
	}{
		{"sha256 match", SHA256, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", true},
		{"md5 match", MD5, "5eb63bbbe01eeed093cb22bb8f5acdc3", true},
		{"sha1 match", SHA1, "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed", true},
		{"crc32 match", CRC32, "0d4a1185", true},
		{"sha256 mismatch", SHA256, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde8", false},
		{"wrong length digest", SHA256, "abcd", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(path, tt.algo, tt.digest)
			if err != nil {
				t.Fatalf("Matches: %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesBadDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Matches(path, SHA256, "not-hex"); err == nil {
		t.Error("expected error for non-hex digest")
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope"), SHA256); err == nil {
		t.Error("expected error for missing file")
	}
}
