package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected valid zlib header, got %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Expected clean inflate, got %v", err)
	}
	return out
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write([]byte("version mmcinit-link-1\n"))
	w.Write([]byte("identify offset=%u count=%c\n"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got := inflate(t, buf.Bytes())
	want := "version mmcinit-link-1\nidentify offset=%u count=%c\n"
	if string(got) != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestAppendStoredEmpty(t *testing.T) {
	enc := AppendStored(nil, nil)
	if len(enc) != 11 {
		t.Errorf("Expected 11 bytes for empty input, got %d", len(enc))
	}
	if got := inflate(t, enc); len(got) != 0 {
		t.Errorf("Expected empty output, got %d bytes", len(got))
	}
}

func TestAppendStoredSplitsLargeInput(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 5000) // 80000 bytes
	enc := AppendStored(nil, data)

	if want := 2 + 2*5 + len(data) + 4; len(enc) != want {
		t.Errorf("Expected %d encoded bytes, got %d", want, len(enc))
	}
	if got := inflate(t, enc); !bytes.Equal(got, data) {
		t.Errorf("Round trip of %d bytes does not match", len(data))
	}
}

func TestWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Close()
	if _, err := w.Write([]byte("x")); err == nil {
		t.Errorf("Expected error writing after Close")
	}
}
