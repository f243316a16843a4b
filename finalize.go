package xref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jward/xref/internal/backpatch"
	"github.com/jward/xref/internal/config"
	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/indexerr"
	"github.com/jward/xref/internal/redirect"
	"github.com/jward/xref/internal/refs"
	"github.com/jward/xref/internal/store"
	"github.com/jward/xref/internal/symbols"
)

// Stats summarizes a finalize run.
type Stats struct {
	Projects     int
	Symbols      int
	Placeholders int
	References   int
	Pages        int
	Patched      int
	Failed       int
}

// FinalizeDir runs the finalization pass over a directory written by an
// earlier Generate, possibly in another process. Only WithConfig,
// WithParallelism and WithLogger are meaningful here.
func FinalizeDir(ctx context.Context, outDir string, opts ...Option) (*Stats, error) {
	e := &Engine{cfg: config.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("xref: config: %w", err)
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return nil, indexerr.MissingArtifact("finalize", outDir, err)
	}
	f := &finalizer{outDir: outDir, cfg: e.cfg, logger: e.logger}
	return f.run(ctx)
}

type finalizer struct {
	outDir string
	cfg    config.Config
	logger *slog.Logger
}

type projectState struct {
	name         string
	projectFile  string
	excluded     bool
	symbols      int
	placeholders int
	references   int
	pages        int
	patched      int
	failed       int
	referencing  []string
	redirect     *redirect.Result
	hasDeclMap   bool
}

func (f *finalizer) run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	names, err := discoverProjects(f.outDir)
	if err != nil {
		return nil, err
	}
	projects := make([]*projectState, len(names))
	for i, name := range names {
		projects[i] = &projectState{name: name, excluded: f.cfg.Excluded(name)}
	}

	// Master index over every project's declarations.
	catalog := symbols.NewCatalog(f.logger)
	errs := runParallel(ctx, f.cfg.Parallelism, len(projects), func(_ context.Context, i int) error {
		return f.loadDeclarations(catalog, projects[i])
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("finalize: load declarations had %d error(s): %w", len(errs), errs[0])
	}
	total, err := catalog.Finalize(f.outDir)
	if err != nil {
		return nil, fmt.Errorf("finalize: master index: %w", err)
	}

	errs = runParallel(ctx, f.cfg.Parallelism, len(projects), func(ctx context.Context, i int) error {
		if projects[i].excluded {
			f.logger.Debug("finalize.project.excluded", "assembly", projects[i].name)
			return nil
		}
		if err := f.finalizeProject(ctx, projects[i]); err != nil {
			f.logger.Warn("finalize.project.failed", "assembly", projects[i].name, "error", err)
			return fmt.Errorf("project %s: %w", projects[i].name, err)
		}
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &Stats{Projects: len(projects), Symbols: total, Failed: len(errs)}
	entries := make([]ProjectEntry, len(projects))
	for i, p := range projects {
		stats.Placeholders += p.placeholders
		stats.References += p.references
		stats.Pages += p.pages
		stats.Patched += p.patched
		stats.Failed += p.failed
		entries[i] = ProjectEntry{Assembly: p.name, ProjectFile: p.projectFile, Referencing: len(p.referencing)}
	}
	if err := WriteProjectMap(filepath.Join(f.outDir, ProjectMapFile), entries); err != nil {
		return stats, fmt.Errorf("finalize: %w", err)
	}
	if err := writeStats(filepath.Join(f.outDir, StatsFile), stats); err != nil {
		return stats, fmt.Errorf("finalize: %w", err)
	}
	if f.cfg.Manifest {
		if err := f.writeManifest(projects, stats); err != nil {
			return stats, fmt.Errorf("finalize: %w", err)
		}
	}

	f.logger.Info("finalize.done",
		"projects", stats.Projects,
		"symbols", stats.Symbols,
		"references", stats.References,
		"pages", stats.Pages,
		"patched", stats.Patched,
		"failed", stats.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if len(errs) > 0 {
		return stats, fmt.Errorf("finalize had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// discoverProjects lists the subdirectories holding declarations or
// references, in assembly-number order.
func discoverProjects(outDir string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, indexerr.IO("discover projects", outDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(outDir, e.Name())
		if exists(filepath.Join(dir, DeclarationsFile)) || exists(filepath.Join(dir, refs.DirName)) {
			names = append(names, e.Name())
		}
	}
	symbols.SortProducers(names)
	return names, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (f *finalizer) loadDeclarations(catalog *symbols.Catalog, p *projectState) error {
	dir := filepath.Join(f.outDir, p.name)
	if data, err := os.ReadFile(filepath.Join(dir, ProjectInfoFile)); err == nil {
		p.projectFile = strings.TrimSpace(string(data))
	}

	catalog.Add(p.name)
	path := filepath.Join(dir, DeclarationsFile)
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return indexerr.IO("load declarations", path, err)
	}
	defer file.Close()
	decls, err := symbols.ReadDeclarations(file)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	infos := make([]Symbol, 0, len(decls))
	for _, d := range decls {
		info, ok := d.Info()
		if !ok {
			p.placeholders++
			continue
		}
		info.ProjectFilePath = p.projectFile
		infos = append(infos, info)
	}
	if p.placeholders > 0 {
		f.logger.Warn("finalize.declarations.placeholders", "assembly", p.name, "count", p.placeholders)
	}
	catalog.Add(p.name, infos...)
	p.symbols = len(infos)
	return nil
}

func (f *finalizer) finalizeProject(ctx context.Context, p *projectState) error {
	dir := filepath.Join(f.outDir, p.name)

	x, err := declmap.ReadFile(filepath.Join(dir, DeclarationMapFile))
	switch {
	case errors.Is(err, indexerr.ErrMissingArtifact):
		x = declmap.NewIndex()
	case err != nil:
		return err
	default:
		p.hasDeclMap = true
	}

	rr, err := redirect.Build(x, f.cfg.RedirectOptions())
	if err != nil {
		return err
	}
	if err := rr.Write(dir); err != nil {
		return err
	}
	p.redirect = rr

	if err := f.writeReferencePages(ctx, p); err != nil {
		return err
	}

	plan := backpatch.PlanFor(x, func(id string) bool {
		return refs.Exists(f.outDir, p.name, id)
	})
	patcher := &backpatch.Patcher{Root: dir, Parallelism: f.cfg.Parallelism, Logger: f.logger.With("assembly", p.name)}
	res, err := patcher.Apply(ctx, plan)
	if err != nil {
		return err
	}
	p.patched = res.Locations
	p.failed += len(res.Failed)

	f.logger.Debug("finalize.project",
		"assembly", p.name,
		"symbols", p.symbols,
		"locations", x.Len(),
		"pages", p.pages,
		"patched", p.patched,
	)
	return nil
}

// writeReferencePages renders every persisted references file of p and
// collects the assemblies that reference it. A symbol whose file cannot be
// read or rendered is logged and skipped.
func (f *finalizer) writeReferencePages(ctx context.Context, p *projectState) error {
	syms, err := refs.PersistedSymbols(f.outDir, p.name)
	if err != nil {
		return indexerr.IO("list references", refs.Dir(f.outDir, p.name), err)
	}
	referencing := make(map[string]struct{})
	for _, sym := range syms {
		if err := ctx.Err(); err != nil {
			return err
		}
		agg, err := refs.ReadAndAggregate(f.outDir, p.name, sym)
		if err == nil {
			err = refs.WritePageFile(f.outDir, p.name, agg)
		}
		if err != nil {
			f.logger.Warn("finalize.references.failed", "assembly", p.name, "symbol", sym, "error", err)
			p.failed++
			continue
		}
		p.pages++
		p.references += agg.Count
		for _, k := range agg.Kinds {
			for _, a := range k.Assemblies {
				if a.Assembly != p.name {
					referencing[a.Assembly] = struct{}{}
				}
			}
		}
	}
	if err := refs.WriteNoReferencesPage(f.outDir, p.name, symbols.ZeroID); err != nil {
		return err
	}

	p.referencing = make([]string, 0, len(referencing))
	for a := range referencing {
		p.referencing = append(p.referencing, a)
	}
	symbols.SortProducers(p.referencing)
	return writeLines(filepath.Join(f.outDir, p.name, ReferencingFile), p.referencing)
}

func writeStats(path string, s *Stats) error {
	return writeLines(path, []string{
		"ProjectCount=" + strconv.Itoa(s.Projects),
		"DeclaredSymbols=" + strconv.Itoa(s.Symbols),
		"Placeholders=" + strconv.Itoa(s.Placeholders),
		"References=" + strconv.Itoa(s.References),
		"ReferencePages=" + strconv.Itoa(s.Pages),
		"PatchedLocations=" + strconv.Itoa(s.Patched),
		"Failures=" + strconv.Itoa(s.Failed),
	})
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return indexerr.IO("write", path, err)
	}
	return nil
}

func (f *finalizer) writeManifest(projects []*projectState, stats *Stats) error {
	m := &store.Manifest{
		Metadata: map[string]string{
			store.MetaSignificantIDLength: strconv.Itoa(f.cfg.SignificantIDLength),
			store.MetaMaxTableEntries:     strconv.Itoa(f.cfg.MaxTableEntries),
			store.MetaSymbols:             strconv.Itoa(stats.Symbols),
			store.MetaReferences:          strconv.Itoa(stats.References),
			store.MetaPatched:             strconv.Itoa(stats.Patched),
			store.MetaFinishedAt:          time.Now().UTC().Format(time.RFC3339),
		},
	}

	var arts []struct{ rel, kind, project string }
	add := func(rel, kind, project string) {
		if exists(filepath.Join(f.outDir, filepath.FromSlash(rel))) {
			arts = append(arts, struct{ rel, kind, project string }{rel, kind, project})
		}
	}
	add(symbols.MasterIndexFile, store.ArtifactMasterIndex, "")
	add(symbols.HuffmanFile, store.ArtifactHuffman, "")
	add(ProjectMapFile, store.ArtifactProjectMap, "")
	add(StatsFile, store.ArtifactStats, "")

	for i, p := range projects {
		m.Projects = append(m.Projects, store.Project{
			Assembly:       p.name,
			AssemblyNumber: i,
			ProjectFile:    p.projectFile,
			Symbols:        p.symbols,
			References:     p.references,
			Patched:        p.patched,
			Excluded:       p.excluded,
			Referencing:    p.referencing,
		})
		add(p.name+"/"+DeclarationsFile, store.ArtifactDeclarations, p.name)
		if p.hasDeclMap {
			add(p.name+"/"+DeclarationMapFile, store.ArtifactDeclMap, p.name)
		}
		if p.redirect == nil {
			continue
		}
		add(p.name+"/"+redirect.RootFile, store.ArtifactRedirect, p.name)
		for j := range p.redirect.Tables {
			add(p.name+"/"+p.redirect.Tables[j].FileName(), store.ArtifactRedirect, p.name)
		}
		for j := range p.redirect.Partials {
			add(p.name+"/"+p.redirect.Partials[j].FileName(), store.ArtifactPartial, p.name)
		}
	}

	for _, a := range arts {
		art, err := store.NewArtifact(f.outDir, a.rel, a.kind, a.project)
		if err != nil {
			return err
		}
		m.Artifacts = append(m.Artifacts, art)
	}

	s, err := store.NewStore(filepath.Join(f.outDir, store.FileName))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return err
	}
	if err := s.Commit(m); err != nil {
		return err
	}
	f.logger.Debug("finalize.manifest", "projects", len(m.Projects), "artifacts", len(m.Artifacts))
	return nil
}
