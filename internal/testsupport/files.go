package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// ftyp box marking the file as MP4-shaped, enough for path and copy checks
// that never decode the stream.
var clipHeader = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2")

// WriteClip creates a fake scene clip at path, padded to at least size bytes.
// Parent directories are created as needed.
func WriteClip(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	var buf bytes.Buffer
	buf.Write(clipHeader)
	for int64(buf.Len()) < size {
		buf.WriteByte('m')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write clip %s: %v", path, err)
	}
}
