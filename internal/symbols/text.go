package symbols

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// Declaration is the result of parsing one declared-symbol text line: either
// a valid symbol or a placeholder for a line that could not be read.
type Declaration struct {
	info  Info
	valid bool
}

// Valid wraps a parsed symbol.
func Valid(info Info) Declaration {
	return Declaration{info: info, valid: true}
}

// Placeholder stands in for an unreadable line.
func Placeholder() Declaration {
	return Declaration{}
}

// Info returns the symbol and true, or false for a placeholder.
func (d Declaration) Info() (Info, bool) {
	return d.info, d.valid
}

// IsPlaceholder reports whether d carries no symbol.
func (d Declaration) IsPlaceholder() bool {
	return !d.valid
}

// FormatDeclaration renders s as a `name;id;kind;description;glyph` line
// without the trailing newline.
func FormatDeclaration(s *Info) (string, error) {
	for _, f := range []string{s.Name, s.Kind, s.Description} {
		if strings.ContainsAny(f, ";\r\n") {
			return "", indexerr.InconsistentReference("format declaration", "field %q contains a separator", f)
		}
	}
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte(';')
	b.WriteString(FormatID(s.ID))
	b.WriteByte(';')
	b.WriteString(s.Kind)
	b.WriteByte(';')
	b.WriteString(s.Description)
	b.WriteByte(';')
	b.WriteString(strconv.FormatUint(uint64(s.Glyph), 10))
	return b.String(), nil
}

// ParseDeclaration parses a line written by FormatDeclaration. KindRank is
// derived from the kind. Lines with the wrong field count, a bad id or a bad
// glyph yield a placeholder.
func ParseDeclaration(line string) Declaration {
	parts := strings.Split(line, ";")
	if len(parts) != 5 {
		return Placeholder()
	}
	id, err := ParseID(parts[1])
	if err != nil {
		return Placeholder()
	}
	glyph, err := strconv.ParseUint(parts[4], 10, 16)
	if err != nil {
		return Placeholder()
	}
	return Valid(Info{
		ID:          id,
		Name:        parts[0],
		Kind:        parts[2],
		KindRank:    KindRank(parts[2]),
		Description: parts[3],
		Glyph:       uint16(glyph),
	})
}

// WriteDeclarations writes one line per symbol. A symbol that cannot be
// formatted is logged and skipped; the rest of the file is still written.
// It returns the number of skipped symbols. A nil logger uses slog.Default.
func WriteDeclarations(w io.Writer, infos []Info, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bw := bufio.NewWriter(w)
	skipped := 0
	for i := range infos {
		line, err := FormatDeclaration(&infos[i])
		if err != nil {
			logger.Warn("declarations.symbol.skipped", "assembly", infos[i].AssemblyName, "name", infos[i].Name, "error", err)
			skipped++
			continue
		}
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return skipped, indexerr.IO("write declarations", "", err)
	}
	return skipped, nil
}

// ReadDeclarations parses every non-empty line of r.
func ReadDeclarations(r io.Reader) ([]Declaration, error) {
	var out []Declaration
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		out = append(out, ParseDeclaration(line))
	}
	if err := sc.Err(); err != nil {
		return nil, indexerr.IO("read declarations", "", err)
	}
	return out, nil
}
