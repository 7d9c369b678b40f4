package gitlib

import (
	"bytes"
	"errors"
	"strings"
)

// ErrBinary marks content that cannot be tracked line by line.
var ErrBinary = errors.New("binary content")

// binarySniffLength is the number of bytes scanned for null bytes when
// detecting binary content.
const binarySniffLength = 8000

// CachedBlob holds blob content read out of libgit2 so it can be used after
// the underlying object is freed.
type CachedBlob struct {
	hash Hash
	// Data is the raw blob content.
	Data []byte
}

// Hash returns the blob hash.
func (b *CachedBlob) Hash() Hash {
	return b.hash
}

// IsBinary reports whether the blob appears to be binary (null byte within
// the sniff window).
func (b *CachedBlob) IsBinary() bool {
	sniff := b.Data
	if len(sniff) > binarySniffLength {
		sniff = sniff[:binarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// Lines splits the blob into lines without trailing newlines. Returns
// ErrBinary for binary content. An empty blob has no lines.
func (b *CachedBlob) Lines() ([]string, error) {
	if b.IsBinary() {
		return nil, ErrBinary
	}

	if len(b.Data) == 0 {
		return nil, nil
	}

	text := string(b.Data)
	text = strings.TrimSuffix(text, "\n")

	return strings.Split(text, "\n"), nil
}
