package changedetect

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashContent returns the canonical content-hash string stored in
// store.FileRecord.ContentHash. Used both here and by the ingestion
// pipeline so that a file written once and read twice hashes to the
// same string.
func HashContent(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
