package xref

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/jward/xref/internal/config"
	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/indexerr"
	"github.com/jward/xref/internal/redirect"
	"github.com/jward/xref/internal/refs"
	"github.com/jward/xref/internal/store"
	"github.com/jward/xref/internal/symbols"
)

// Index is a read-only view of a finalized output directory.
type Index struct {
	outDir   string
	cfg      config.Config
	projects []ProjectEntry
	symbols  []Symbol
}

// Open loads the project map and master index of outDir. When the build
// manifest is present its table layout wins over the configured one, so
// lookups truncate ids the same way the tables were written.
func Open(outDir string, opts ...Option) (*Index, error) {
	e := &Engine{cfg: config.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	x := &Index{outDir: outDir, cfg: e.cfg}

	if err := x.loadLayout(); err != nil {
		return nil, err
	}
	if err := x.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("xref: open: %w", err)
	}

	projects, err := ReadProjectMap(outDir)
	if err != nil {
		return nil, fmt.Errorf("xref: open: %w", err)
	}
	x.projects = projects

	infos, err := symbols.ReadMasterIndex(outDir)
	switch {
	case errors.Is(err, indexerr.ErrMissingArtifact):
		e.logger.Debug("index.open.empty", "dir", outDir)
	case err != nil:
		return nil, fmt.Errorf("xref: open: %w", err)
	}
	for i := range infos {
		n := int(infos[i].AssemblyNumber)
		if n >= len(projects) {
			return nil, indexerr.CorruptIndex("open", outDir, "symbol %q has assembly number %d of %d", infos[i].Name, n, len(projects))
		}
		infos[i].AssemblyName = projects[n].Assembly
		infos[i].ProjectFilePath = projects[n].ProjectFile
	}
	x.symbols = infos
	return x, nil
}

func (x *Index) loadLayout() error {
	path := filepath.Join(x.outDir, store.FileName)
	if !exists(path) {
		return nil
	}
	s, err := store.NewStore(path)
	if err != nil {
		return fmt.Errorf("xref: open manifest: %w", err)
	}
	defer s.Close()
	if n, ok, err := s.MetadataInt(store.MetaSignificantIDLength); err != nil {
		return fmt.Errorf("xref: open manifest: %w", err)
	} else if ok {
		x.cfg.SignificantIDLength = n
	}
	if n, ok, err := s.MetadataInt(store.MetaMaxTableEntries); err != nil {
		return fmt.Errorf("xref: open manifest: %w", err)
	} else if ok {
		x.cfg.MaxTableEntries = n
	}
	return nil
}

// Projects returns the project map in assembly-number order.
func (x *Index) Projects() []ProjectEntry { return x.projects }

// Symbols returns every declared symbol in master index order.
func (x *Index) Symbols() []Symbol { return x.symbols }

// SignificantIDLength returns the truncation used by the redirect tables.
func (x *Index) SignificantIDLength() int { return x.cfg.SignificantIDLength }

// Lookup returns the symbols named name, ignoring case.
func (x *Index) Lookup(name string) []Symbol {
	i := sort.Search(len(x.symbols), func(i int) bool {
		return symbols.FoldCompare(x.symbols[i].Name, name) >= 0
	})
	var out []Symbol
	for ; i < len(x.symbols) && symbols.FoldCompare(x.symbols[i].Name, name) == 0; i++ {
		out = append(out, x.symbols[i])
	}
	return out
}

// Symbol returns the symbol with the given id.
func (x *Index) Symbol(id string) (Symbol, bool) {
	n, err := symbols.ParseID(id)
	if err != nil {
		return Symbol{}, false
	}
	for _, s := range x.symbols {
		if s.ID == n {
			return s, true
		}
	}
	return Symbol{}, false
}

// Declarations reads the declaration map of assembly.
func (x *Index) Declarations(assembly string) (*declmap.Index, error) {
	return declmap.ReadFile(filepath.Join(x.outDir, assembly, DeclarationMapFile))
}

// Resolve looks id up in the redirect tables of assembly.
func (x *Index) Resolve(assembly, id string) (Target, bool, error) {
	canon, err := symbols.CanonicalID(id)
	if err != nil {
		return Target{}, false, err
	}
	decls, err := x.Declarations(assembly)
	if err != nil {
		return Target{}, false, err
	}
	rr, err := redirect.Build(decls, x.cfg.RedirectOptions())
	if err != nil {
		return Target{}, false, err
	}
	t, ok := rr.Resolve(canon)
	return t, ok, nil
}

// References aggregates the references to id declared in assembly. A
// symbol without references yields an empty aggregate.
func (x *Index) References(assembly, id string) (*Aggregate, error) {
	canon, err := symbols.CanonicalID(id)
	if err != nil {
		return nil, err
	}
	return refs.ReadAndAggregate(x.outDir, assembly, canon)
}
