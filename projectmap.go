package xref

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// ProjectEntry is one line of the project map. Its position in the map is
// the assembly number used by the master index.
type ProjectEntry struct {
	Assembly    string
	ProjectFile string
	// Referencing counts the other assemblies that reference this one.
	Referencing int
}

// WriteProjectMap writes one `assembly;projectFile;referencing` line per
// entry, in order.
func WriteProjectMap(path string, entries []ProjectEntry) error {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Assembly + ";" + e.ProjectFile + ";" + strconv.Itoa(e.Referencing)
	}
	return writeLines(path, lines)
}

// ReadProjectMap reads the project map of outDir.
func ReadProjectMap(outDir string) ([]ProjectEntry, error) {
	const op = "read project map"
	path := filepath.Join(outDir, ProjectMapFile)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, indexerr.MissingArtifact(op, path, err)
		}
		return nil, indexerr.IO(op, path, err)
	}
	defer f.Close()

	var out []ProjectEntry
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) != 3 {
			return nil, indexerr.CorruptIndex(op, path, "line %d: want 3 fields, got %d", n, len(parts))
		}
		count, err := strconv.Atoi(parts[2])
		if err != nil || count < 0 {
			return nil, indexerr.CorruptIndex(op, path, "line %d: bad referencing count %q", n, parts[2])
		}
		out = append(out, ProjectEntry{Assembly: parts[0], ProjectFile: parts[1], Referencing: count})
	}
	if err := sc.Err(); err != nil {
		return nil, indexerr.IO(op, path, err)
	}
	return out, nil
}
