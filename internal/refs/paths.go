package refs

import (
	"os"
	"path/filepath"
)

// DirName is the per-assembly directory holding references files and pages.
const DirName = "R"

// Dir returns the references directory of assembly.
func Dir(outDir, assembly string) string {
	return filepath.Join(outDir, assembly, DirName)
}

// FilePath returns the raw references file of symbol.
func FilePath(outDir, assembly, symbol string) string {
	return filepath.Join(outDir, assembly, DirName, symbol+".txt")
}

// PagePath returns the rendered references page of symbol.
func PagePath(outDir, assembly, symbol string) string {
	return filepath.Join(outDir, assembly, DirName, symbol+".html")
}

// Exists reports whether symbol has a references file.
func Exists(outDir, assembly, symbol string) bool {
	_, err := os.Stat(FilePath(outDir, assembly, symbol))
	return err == nil
}

// PersistedSymbols lists the symbols of assembly that have a references
// file, in name order.
func PersistedSymbols(outDir, assembly string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(Dir(outDir, assembly), "*.txt"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		out = append(out, base[:len(base)-len(".txt")])
	}
	return out, nil
}
