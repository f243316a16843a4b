// Package refs collects references to declared symbols, persists them as
// per-symbol files and reads them back grouped for rendering.
package refs

import (
	"strconv"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// Reference is one use site of a symbol. ColumnStart and ColumnEnd are a
// half-open byte span of the referenced token inside LineText.
type Reference struct {
	FromAssemblyID string
	ToAssemblyID   string
	ToSymbolID     string
	ToSymbolName   string
	FromLocalPath  string
	URL            string
	LineText       string
	LineNumber     int
	ColumnStart    int
	ColumnEnd      int
	Kind           Kind
}

// Token returns the referenced text.
func (r *Reference) Token() string {
	return r.LineText[r.ColumnStart:r.ColumnEnd]
}

// Validate checks the span and that every field can be persisted.
func (r *Reference) Validate() error {
	const op = "validate reference"
	if r.ColumnStart < 0 || r.ColumnStart >= r.ColumnEnd || r.ColumnEnd > len(r.LineText) {
		return indexerr.InconsistentReference(op, "span [%d,%d) outside line of %d bytes in %s:%d",
			r.ColumnStart, r.ColumnEnd, len(r.LineText), r.FromLocalPath, r.LineNumber)
	}
	if !r.Kind.Valid() {
		return indexerr.InconsistentReference(op, "unknown kind %d", int(r.Kind))
	}
	if r.ToSymbolID == "" || r.ToAssemblyID == "" {
		return indexerr.InconsistentReference(op, "reference in %s:%d has no target", r.FromLocalPath, r.LineNumber)
	}
	for _, asm := range []string{r.FromAssemblyID, r.ToAssemblyID} {
		if !ValidAssembly(asm) {
			return indexerr.InconsistentReference(op, "invalid assembly name %q", asm)
		}
	}
	if !ValidAssembly(r.ToSymbolID) {
		return indexerr.InconsistentReference(op, "invalid symbol id %q", r.ToSymbolID)
	}
	for _, f := range []string{r.FromAssemblyID, r.URL, r.FromLocalPath, r.ToAssemblyID, r.ToSymbolID} {
		if strings.ContainsAny(f, ";\r\n") {
			return indexerr.InconsistentReference(op, "field %q contains a separator", f)
		}
	}
	if strings.ContainsAny(r.LineText, "\r\n") {
		return indexerr.InconsistentReference(op, "line text of %s:%d contains a line break", r.FromLocalPath, r.LineNumber)
	}
	return nil
}

// ValidAssembly reports whether name can be used as a single directory
// name under the output directory and as a record field.
func ValidAssembly(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\;`+"\r\n")
}

// LinkURL returns the link from the target assembly's references page to the
// line of the use site.
func LinkURL(r *Reference) string {
	link := strings.ReplaceAll(r.FromLocalPath, `\`, "/") + ".html#" + strconv.Itoa(r.LineNumber)
	if r.FromAssemblyID == r.ToAssemblyID {
		return "../" + link
	}
	return "../../" + r.FromAssemblyID + "/" + link
}

var noiseNames = map[string]bool{
	"this":      true,
	"base":      true,
	"var":       true,
	"UsingTask": true,
	"[":         true,
}

// SymbolName picks a display name for the referenced symbol: the first
// ToSymbolName that is not a syntactic keyword. It returns "" when every
// name is noise.
func SymbolName(refs []Reference) string {
	for i := range refs {
		if n := refs[i].ToSymbolName; n != "" && !noiseNames[n] {
			return n
		}
	}
	return ""
}
