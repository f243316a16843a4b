package refs

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// recordFields is the field count of a record's first line:
// fromAssembly;url;fromLocalPath;lineNumber;colStart;colEnd;kind
const recordFields = 7

// EncodeRecord writes r as two lines: the semicolon-joined fields, then the
// line text.
func EncodeRecord(w io.Writer, r *Reference) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(r.FromAssemblyID)
	b.WriteByte(';')
	b.WriteString(r.URL)
	b.WriteByte(';')
	b.WriteString(r.FromLocalPath)
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(r.LineNumber))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(r.ColumnStart))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(r.ColumnEnd))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(int(r.Kind)))
	b.WriteByte('\n')
	b.WriteString(r.LineText)
	b.WriteByte('\n')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return indexerr.IO("encode reference", "", err)
	}
	return nil
}

// DecodeRecord parses the two lines of one record. The target assembly and
// symbol are not stored in the record and come from the file's location.
// ToSymbolName is taken from the span.
func DecodeRecord(fields, lineText, toAssembly, toSymbol string) (Reference, error) {
	const op = "decode reference"
	parts := strings.Split(fields, ";")
	if len(parts) != recordFields {
		return Reference{}, indexerr.CorruptIndex(op, "", "want %d fields, got %d in %q", recordFields, len(parts), fields)
	}
	var nums [4]int
	for i, p := range parts[3:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Reference{}, indexerr.CorruptIndex(op, "", "field %d: %v", i+3, err)
		}
		nums[i] = n
	}
	r := Reference{
		FromAssemblyID: parts[0],
		URL:            parts[1],
		FromLocalPath:  parts[2],
		LineNumber:     nums[0],
		ColumnStart:    nums[1],
		ColumnEnd:      nums[2],
		Kind:           Kind(nums[3]),
		LineText:       lineText,
		ToAssemblyID:   toAssembly,
		ToSymbolID:     toSymbol,
	}
	if !r.Kind.Valid() {
		return Reference{}, indexerr.CorruptIndex(op, "", "unknown kind %d", nums[3])
	}
	if err := r.Validate(); err != nil {
		return Reference{}, err
	}
	r.ToSymbolName = r.Token()
	return r, nil
}

// ReadRecords decodes every record in rd. A dangling first line without its
// text line is CorruptIndex.
func ReadRecords(rd io.Reader, toAssembly, toSymbol string) ([]Reference, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var out []Reference
	for sc.Scan() {
		fields := strings.TrimSuffix(sc.Text(), "\r")
		if fields == "" {
			continue
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, indexerr.IO("read references", "", err)
			}
			return nil, indexerr.CorruptIndex("read references", "", "record %d has no line text", len(out)+1)
		}
		r, err := DecodeRecord(fields, strings.TrimSuffix(sc.Text(), "\r"), toAssembly, toSymbol)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, indexerr.IO("read references", "", err)
	}
	return out, nil
}

// ReadFile reads the references file of symbol in assembly under outDir. A
// missing file is MissingArtifact.
func ReadFile(outDir, assembly, symbol string) ([]Reference, error) {
	path := FilePath(outDir, assembly, symbol)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, indexerr.MissingArtifact("read references", path, err)
		}
		return nil, indexerr.IO("read references", path, err)
	}
	defer f.Close()
	out, err := ReadRecords(f, assembly, symbol)
	if err != nil {
		var ie *indexerr.Error
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = path
		}
		return nil, err
	}
	return out, nil
}
