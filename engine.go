package xref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jward/xref/internal/config"
	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/refs"
	"github.com/jward/xref/internal/symbols"
)

// ErrPhase is returned by generation calls after Generate has joined its
// producers, and by Finalize before that.
var ErrPhase = errors.New("xref: operation not allowed in current phase")

type phase int32

const (
	phaseGenerating phase = iota
	phaseGenerated
	phaseFinalized
)

// Engine collects declared symbols, references and declaration offsets from
// concurrent producers, then finalizes them into the on-disk index under
// its output directory.
type Engine struct {
	outDir string
	cfg    config.Config
	logger *slog.Logger

	catalog *symbols.Catalog
	ledger  *refs.Ledger

	mu       sync.Mutex
	projects map[string]*Project

	phase   atomic.Int32
	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithParallelism bounds the worker pool. 0 means runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.cfg.Parallelism = n
	}
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine writing into outDir.
func New(outDir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		outDir:   outDir,
		cfg:      config.Default(),
		projects: make(map[string]*Project),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("xref: config: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("xref: create output directory: %w", err)
	}
	e.catalog = symbols.NewCatalog(e.logger)
	e.ledger = refs.NewLedger(e.logger)
	return e, nil
}

// OutDir returns the output directory.
func (e *Engine) OutDir() string {
	return e.outDir
}

// Config returns the validated configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

func (e *Engine) inPhase(p phase) bool {
	return phase(e.phase.Load()) == p
}

// Project returns the producer handle for assembly, creating it on first
// use. Handles are safe for concurrent use by many goroutines.
func (e *Engine) Project(assembly, projectFile string) (*Project, error) {
	if !e.inPhase(phaseGenerating) {
		return nil, ErrPhase
	}
	if err := validateAssembly(assembly); err != nil {
		return nil, err
	}
	if strings.ContainsAny(projectFile, ";\r\n") {
		return nil, fmt.Errorf("xref: invalid project file %q", projectFile)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.projects[assembly]
	if !ok {
		p = &Project{
			engine:      e,
			assembly:    assembly,
			projectFile: projectFile,
			decls:       declmap.NewRecorder(),
		}
		e.projects[assembly] = p
		e.catalog.Add(assembly)
	}
	return p, nil
}

func validateAssembly(name string) error {
	if !refs.ValidAssembly(name) {
		return fmt.Errorf("xref: invalid assembly name %q", name)
	}
	return nil
}

// Projects returns the registered assembly names in numbering order.
func (e *Engine) Projects() []string {
	return e.catalog.Producers()
}

// Project is one producer's view of the engine.
type Project struct {
	engine      *Engine
	assembly    string
	projectFile string
	decls       *declmap.Recorder
	symbols     atomic.Int64
	references  atomic.Int64
}

// Assembly returns the assembly name.
func (p *Project) Assembly() string { return p.assembly }

// Dir returns the project's output directory. Declaration paths passed to
// RecordDeclaration are relative to it.
func (p *Project) Dir() string {
	return filepath.Join(p.engine.outDir, p.assembly)
}

// AddSymbol records declared symbols of this project.
func (p *Project) AddSymbol(infos ...Symbol) error {
	if !p.engine.inPhase(phaseGenerating) {
		return ErrPhase
	}
	accepted := make([]Symbol, 0, len(infos))
	var errs []error
	for _, info := range infos {
		if _, err := symbols.FormatDeclaration(&info); err != nil {
			p.engine.logger.Warn("generate.symbol.rejected", "assembly", p.assembly, "name", info.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		info.AssemblyName = p.assembly
		if info.ProjectFilePath == "" {
			info.ProjectFilePath = p.projectFile
		}
		if info.KindRank == 0 && info.Kind != "" {
			info.KindRank = symbols.KindRank(info.Kind)
		}
		accepted = append(accepted, info)
	}
	p.engine.catalog.Add(p.assembly, accepted...)
	p.symbols.Add(int64(len(accepted)))
	if len(errs) > 0 {
		return fmt.Errorf("add symbol had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// AddReference records one use of a symbol. A missing FromAssemblyID is
// filled with this project's assembly. The target id is normalized to the
// canonical form before it is used as a key.
func (p *Project) AddReference(r Reference) error {
	if !p.engine.inPhase(phaseGenerating) {
		return ErrPhase
	}
	if r.FromAssemblyID == "" {
		r.FromAssemblyID = p.assembly
	}
	id, err := symbols.CanonicalID(r.ToSymbolID)
	if err != nil {
		return fmt.Errorf("add reference: %w", err)
	}
	r.ToSymbolID = id
	if r.URL == "" {
		r.URL = refs.LinkURL(&r)
	}
	if err := p.engine.ledger.Record(r); err != nil {
		return fmt.Errorf("add reference: %w", err)
	}
	p.references.Add(1)
	return nil
}

// RecordDeclaration reports that the marker for id was written at offset
// in filePath, relative to Dir.
func (p *Project) RecordDeclaration(id, filePath string, offset int64) error {
	if !p.engine.inPhase(phaseGenerating) {
		return ErrPhase
	}
	canon, err := symbols.CanonicalID(id)
	if err != nil {
		return fmt.Errorf("record declaration: %w", err)
	}
	if offset < 0 {
		return fmt.Errorf("record declaration: negative offset %d", offset)
	}
	if err := validateDeclarationPath(filePath); err != nil {
		return fmt.Errorf("record declaration: %w", err)
	}
	p.decls.RecordDeclaration(canon, filePath, offset)
	return nil
}

// validateDeclarationPath accepts relative paths that stay inside the
// project directory and can be stored as a declaration map location.
func validateDeclarationPath(filePath string) error {
	if filePath == "" {
		return errors.New("empty path")
	}
	if strings.Contains(filePath, ";") {
		return fmt.Errorf("path %q contains a separator", filePath)
	}
	if err := declmap.ValidatePath(filePath); err != nil {
		return err
	}
	slashed := strings.ReplaceAll(filePath, `\`, "/")
	if filepath.IsAbs(filePath) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(filePath) != "" {
		return fmt.Errorf("path %q is absolute", filePath)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return fmt.Errorf("path %q leaves the project directory", filePath)
		}
	}
	return nil
}

// Producer generates the data of one project.
type Producer struct {
	Assembly    string
	ProjectFile string
	Run         func(ctx context.Context, p *Project) error
}

// GenerateStats summarizes a Generate call.
type GenerateStats struct {
	Projects     int
	Symbols      int
	References   int
	Declarations int
	Failed       int
}

// Generate runs producers on the worker pool, joins all of them, then
// writes each project's declarations and declaration map and appends the
// buffered references to their per-symbol files. After Generate returns no
// further generation calls are accepted. Projects registered directly with
// Project are written too.
//
// A failing producer does not stop the others; its error is reported after
// all producers finish.
func (e *Engine) Generate(ctx context.Context, producers ...Producer) (*GenerateStats, error) {
	if !e.inPhase(phaseGenerating) || !e.running.CompareAndSwap(false, true) {
		return nil, ErrPhase
	}
	defer e.running.Store(false)

	errs := runParallel(ctx, e.cfg.Parallelism, len(producers), func(ctx context.Context, i int) error {
		pr := producers[i]
		p, err := e.Project(pr.Assembly, pr.ProjectFile)
		if err != nil {
			return err
		}
		if pr.Run == nil {
			return nil
		}
		if err := pr.Run(ctx, p); err != nil {
			e.logger.Warn("generate.producer.failed", "assembly", pr.Assembly, "error", err)
			return fmt.Errorf("producer %s: %w", pr.Assembly, err)
		}
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Barrier: every producer has returned.
	e.phase.Store(int32(phaseGenerated))

	stats := &GenerateStats{Failed: len(errs)}
	e.mu.Lock()
	projects := make([]*Project, 0, len(e.projects))
	for _, p := range e.projects {
		projects = append(projects, p)
	}
	e.mu.Unlock()

	writeErrs := runParallel(ctx, e.cfg.Parallelism, len(projects), func(_ context.Context, i int) error {
		return e.writeProject(projects[i])
	})
	errs = append(errs, writeErrs...)

	targets := e.ledger.TargetAssemblies()
	persistErrs := runParallel(ctx, e.cfg.Parallelism, len(targets), func(_ context.Context, i int) error {
		_, err := e.ledger.Persist(e.outDir, targets[i])
		return err
	})
	errs = append(errs, persistErrs...)

	for _, p := range projects {
		stats.Projects++
		stats.Symbols += int(p.symbols.Load())
		stats.References += int(p.references.Load())
		stats.Declarations += p.decls.Len()
	}
	e.logger.Info("generate.done",
		"projects", stats.Projects,
		"symbols", stats.Symbols,
		"references", stats.References,
		"declarations", stats.Declarations,
		"errors", len(errs),
	)
	if len(errs) > 0 {
		return stats, fmt.Errorf("generate had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// writeProject writes D.txt, A.txt and P.txt for p.
func (e *Engine) writeProject(p *Project) error {
	dir := p.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("project %s: %w", p.assembly, err)
	}
	if err := writeDeclarations(filepath.Join(dir, DeclarationsFile), e.catalog.Producer(p.assembly), e.logger); err != nil {
		return fmt.Errorf("project %s: %w", p.assembly, err)
	}
	if err := declmap.WriteFile(filepath.Join(dir, DeclarationMapFile), p.decls.Index()); err != nil {
		return fmt.Errorf("project %s: %w", p.assembly, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProjectInfoFile), []byte(p.projectFile+"\n"), 0o644); err != nil {
		return fmt.Errorf("project %s: %w", p.assembly, err)
	}
	return nil
}

func writeDeclarations(path string, infos []Symbol, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := symbols.WriteDeclarations(f, infos, logger); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Finalize runs the finalization pass over the output directory. It may be
// called once, after Generate.
func (e *Engine) Finalize(ctx context.Context) (*Stats, error) {
	if !e.phase.CompareAndSwap(int32(phaseGenerated), int32(phaseFinalized)) {
		return nil, ErrPhase
	}
	f := &finalizer{outDir: e.outDir, cfg: e.cfg, logger: e.logger}
	return f.run(ctx)
}
