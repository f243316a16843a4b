package symbols

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jward/xref/internal/indexerr"
)

// IDWidth is the length of a formatted symbol id in bytes. Declaration
// markers written into generated files have exactly this width.
const IDWidth = 16

// ZeroID marks a declaration whose symbol has no references.
const ZeroID = "0000000000000000"

// SymbolID derives the numeric id of a symbol from its fully qualified
// signature.
func SymbolID(signature string) uint64 {
	return xxhash.Sum64String(signature)
}

// FormatID renders id as 16 upper-case hex digits.
func FormatID(id uint64) string {
	return fmt.Sprintf("%016X", id)
}

// ParseID parses a 16-digit hex id in either case.
func ParseID(s string) (uint64, error) {
	if len(s) != IDWidth {
		return 0, indexerr.InconsistentReference("parse symbol id", "%q is not %d hex digits", s, IDWidth)
	}
	id, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, indexerr.InconsistentReference("parse symbol id", "%q: %v", s, err)
	}
	return id, nil
}

// CanonicalID normalizes a hex id string to the form FormatID produces.
func CanonicalID(s string) (string, error) {
	id, err := ParseID(s)
	if err != nil {
		return "", err
	}
	return FormatID(id), nil
}
