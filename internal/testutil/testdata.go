package testutil

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// LoadStream returns a captured byte stream from a hex fixture relative to
// the repo testdata directory. Blank lines and '#' comments are ignored, as
// is whitespace between hex digits.
func LoadStream(t *testing.T, rel string) []byte {
	t.Helper()
	data := readTestdata(t, rel)
	var digits strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		digits.WriteString(strings.Join(strings.Fields(line), ""))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", rel, err)
	}
	out, err := hex.DecodeString(digits.String())
	if err != nil {
		t.Fatalf("decode %s: %v", rel, err)
	}
	return out
}

// Path resolves a testdata file the same way the loaders do.
func Path(t *testing.T, rel string) string {
	t.Helper()
	for _, path := range candidates(rel) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Fatalf("unable to locate testdata file %s", rel)
	return ""
}

func readTestdata(t *testing.T, rel string) []byte {
	t.Helper()
	for _, path := range candidates(rel) {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
	}
	t.Fatalf("unable to locate testdata file %s", rel)
	return nil
}

func candidates(rel string) []string {
	return []string{
		filepath.Join("testdata", rel),
		filepath.Join("..", "testdata", rel),
		filepath.Join("..", "..", "testdata", rel),
	}
}
