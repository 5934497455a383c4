package parser

import (
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// FragmentID computes the deterministic content-addressed ID for a
// fragment: digest(file_path ‖ kind ‖ start ‖ end ‖ name) per §4.3. Two
// xxhash.Sum64 passes over domain-separated inputs are concatenated into
// a 16-byte digest and hex-encoded, giving IDs stable across reparses
// that don't move the fragment while avoiding sha256's cost on a
// per-fragment hot path (adapted from the teacher's generateChunkID,
// which hashes file path + content with sha256; codelens hashes the
// node's identity tuple instead of its content, since content-based IDs
// would change on every formatting-only edit).
func FragmentID(filePath, kind string, startLine, startCol, endLine, endCol int, name string) string {
	tuple := fmt.Sprintf("%s\x1f%s\x1f%d:%d\x1f%d:%d\x1f%s", filePath, kind, startLine, startCol, endLine, endCol, name)

	lo := xxhash.Sum64([]byte(tuple))
	hi := xxhash.Sum64([]byte(tuple + "\x1fhi"))

	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(lo >> (8 * i))
		buf[8+i] = byte(hi >> (8 * i))
	}
	return hex.EncodeToString(buf[:])
}
