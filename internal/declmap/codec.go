package declmap

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// Write serializes x in id order.
func Write(w io.Writer, x *Index) error {
	const op = "write declaration map"
	bw := bufio.NewWriter(w)
	for _, e := range x.Entries() {
		if strings.ContainsAny(e.ID, "\r\n") {
			return indexerr.InconsistentReference(op, "symbol id %q contains a line break", e.ID)
		}
		bw.WriteByte('=')
		bw.WriteString(e.ID)
		bw.WriteByte('\n')
		for _, loc := range e.Locations {
			if err := ValidatePath(loc.FilePath); err != nil {
				return err
			}
			bw.WriteString(loc.FilePath)
			bw.WriteByte(';')
			bw.WriteString(strconv.FormatInt(loc.Offset, 10))
			bw.WriteByte('\n')
		}
	}
	if err := bw.Flush(); err != nil {
		return indexerr.IO(op, "", err)
	}
	return nil
}

// ValidatePath reports whether path can be stored as a location line. A
// leading '=' would read back as a symbol id header.
func ValidatePath(path string) error {
	const op = "write declaration map"
	if strings.ContainsAny(path, "\r\n") {
		return indexerr.InconsistentReference(op, "path %q contains a line break", path)
	}
	if strings.HasPrefix(path, "=") {
		return indexerr.InconsistentReference(op, "path %q starts with '='", path)
	}
	return nil
}

// Parse reads a declaration map. Blank lines are skipped. A location line
// before the first header or with a malformed offset is CorruptIndex. The
// offset follows the last ';' so paths may contain semicolons.
func Parse(r io.Reader) (*Index, error) {
	const op = "parse declaration map"
	x := NewIndex()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	id := ""
	haveID := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.HasPrefix(line, "=") {
			id = line[1:]
			haveID = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !haveID {
			return nil, indexerr.CorruptIndex(op, "", "line %d: location before any symbol id", lineNo)
		}
		i := strings.LastIndexByte(line, ';')
		if i < 0 {
			return nil, indexerr.CorruptIndex(op, "", "line %d: missing offset in %q", lineNo, line)
		}
		offset, err := strconv.ParseInt(line[i+1:], 10, 64)
		if err != nil || offset < 0 {
			return nil, indexerr.CorruptIndex(op, "", "line %d: bad offset %q", lineNo, line[i+1:])
		}
		x.AddLocation(id, line[:i], offset)
	}
	if err := sc.Err(); err != nil {
		return nil, indexerr.IO(op, "", err)
	}
	return x, nil
}

// WriteFile writes x to path.
func WriteFile(path string, x *Index) error {
	f, err := os.Create(path)
	if err != nil {
		return indexerr.IO("write declaration map", path, err)
	}
	if err := Write(f, x); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return indexerr.IO("write declaration map", path, err)
	}
	return nil
}

// ReadFile parses the declaration map at path.
func ReadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, indexerr.MissingArtifact("read declaration map", path, err)
		}
		return nil, indexerr.IO("read declaration map", path, err)
	}
	defer f.Close()
	x, err := Parse(f)
	if err != nil {
		var ie *indexerr.Error
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = path
		}
		return nil, err
	}
	return x, nil
}
