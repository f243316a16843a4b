package xref

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jward/xref/internal/config"
	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/indexerr"
	"github.com/jward/xref/internal/refs"
	"github.com/jward/xref/internal/symbols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithParallelism(4)}, opts...)
	e, err := New(filepath.Join(t.TempDir(), "out"), opts...)
	require.NoError(t, err)
	return e
}

// writeSource writes a rendered file under the project directory with one
// `<a id="ID">` marker per id and records each declaration.
func writeSource(p *Project, rel string, ids ...string) error {
	path := filepath.Join(p.Dir(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	offsets := make([]int64, len(ids))
	for i, id := range ids {
		b.WriteString("<a id=\"")
		offsets[i] = int64(b.Len())
		b.WriteString(id)
		b.WriteString("\"></a>\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return err
	}
	for i, id := range ids {
		if err := p.RecordDeclaration(id, rel, offsets[i]); err != nil {
			return err
		}
	}
	return nil
}

func declared(name, kind, desc string) Symbol {
	return Symbol{
		ID:          SymbolID(desc),
		Name:        name,
		Kind:        kind,
		KindRank:    symbols.KindRank(kind),
		Description: desc,
		Glyph:       5,
	}
}

// =============================================================================
// Construction & Options
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "nested", "out")
	e, err := New(out, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.DirExists(t, out)
	assert.Equal(t, out, e.OutDir())
	assert.Equal(t, 8, e.Config().SignificantIDLength)
	assert.Positive(t, e.Config().Parallelism)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.SignificantIDLength = 40
	_, err := New(t.TempDir(), WithConfig(cfg))
	require.Error(t, err)
}

func TestWithParallelism(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithParallelism(3))
	assert.Equal(t, 3, e.Config().Parallelism)
}

// =============================================================================
// Producer handles
// =============================================================================

func TestProject_InvalidNames(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "a;b"} {
		_, err := e.Project(name, "")
		assert.Error(t, err, name)
	}
	_, err := e.Project("App", "bad;path.csproj")
	assert.Error(t, err)
}

func TestProject_SameHandle(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	a, err := e.Project("App", "App.csproj")
	require.NoError(t, err)
	b, err := e.Project("App", "ignored.csproj")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []string{"App"}, e.Projects())
}

func TestProject_RejectsBadInput(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	p, err := e.Project("App", "")
	require.NoError(t, err)

	assert.Error(t, p.RecordDeclaration("not-hex", "a.html", 1))
	assert.Error(t, p.RecordDeclaration("AAAA1111AAAA1111", "a.html", -1))
	assert.Error(t, p.RecordDeclaration("AAAA1111AAAA1111", "a;b.html", 1))

	err = p.AddReference(Reference{ToAssemblyID: "Core", ToSymbolID: "zz", LineText: "x", ColumnEnd: 1})
	assert.Error(t, err)
	err = p.AddReference(Reference{ToAssemblyID: "Core", ToSymbolID: "AAAA1111AAAA1111", LineText: "abc", ColumnStart: 2, ColumnEnd: 9})
	assert.Error(t, err)
}

func TestProject_RejectsUnsafeDeclarationPaths(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	p, err := e.Project("App", "")
	require.NoError(t, err)

	for _, path := range []string{"", "/abs.html", "../x.html", `src\..\..\x.html`, "src/../../x.html", "=gen.html"} {
		assert.Error(t, p.RecordDeclaration("AAAA1111AAAA1111", path, 1), path)
	}
	assert.NoError(t, p.RecordDeclaration("AAAA1111AAAA1111", "src/..gen/a=b.html", 1))
}

func TestProject_RejectsEscapingReference(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	p, err := e.Project("App", "")
	require.NoError(t, err)

	for _, asm := range []string{"../escaped", "..", `a\b`} {
		err := p.AddReference(Reference{
			ToAssemblyID: asm, ToSymbolID: "AAAA1111AAAA1111",
			FromLocalPath: "a.cs", LineText: "Foo();", LineNumber: 1, ColumnStart: 0, ColumnEnd: 3,
			Kind: ReferenceUsage,
		})
		assert.ErrorIs(t, err, indexerr.ErrInconsistentReference, asm)
	}

	_, err = e.Generate(context.Background())
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(e.OutDir()), "escaped"))
}

func TestAddSymbol_RejectsOnlyUnformattableSymbols(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	var addErr error
	gen, err := e.Generate(ctx, Producer{
		Assembly: "A",
		Run: func(_ context.Context, p *Project) error {
			addErr = p.AddSymbol(
				declared("Good", "class", "N.Good"),
				declared("Bad", "method", "N.Bad(a;b)"),
				declared("Other", "field", "N.Other"),
			)
			return writeSource(p, "src/Good.cs.html", FormatID(SymbolID("N.Good")))
		},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, addErr, indexerr.ErrInconsistentReference)
	assert.Contains(t, addErr.Error(), "1 error(s)")
	assert.Equal(t, 2, gen.Symbols)

	data, err := os.ReadFile(filepath.Join(e.OutDir(), "A", DeclarationsFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Good;"))
	assert.True(t, strings.HasPrefix(lines[1], "Other;"))

	stats, err := e.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Symbols)
	assert.Zero(t, stats.Placeholders)
}

func TestProject_CanonicalizesIDs(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	p, err := e.Project("App", "")
	require.NoError(t, err)
	require.NoError(t, p.RecordDeclaration("aaaa1111aaaa1111", "a.html", 7))
	require.NoError(t, p.AddReference(Reference{
		ToAssemblyID: "App", ToSymbolID: "aaaa1111aaaa1111",
		FromLocalPath: "a.cs", LineText: "Foo();", LineNumber: 1, ColumnStart: 0, ColumnEnd: 3,
		Kind: ReferenceUsage,
	}))

	_, err = e.Generate(context.Background())
	require.NoError(t, err)

	x, err := declmap.ReadFile(filepath.Join(p.Dir(), DeclarationMapFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA1111AAAA1111"}, x.IDs())
	assert.True(t, refs.Exists(e.OutDir(), "App", "AAAA1111AAAA1111"))
}

// =============================================================================
// Phases
// =============================================================================

func TestPhases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	p, err := e.Project("App", "")
	require.NoError(t, err)

	_, err = e.Finalize(ctx)
	assert.ErrorIs(t, err, ErrPhase, "finalize before generate")

	_, err = e.Generate(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, p.AddSymbol(declared("Foo", "class", "N.Foo")), ErrPhase)
	assert.ErrorIs(t, p.RecordDeclaration("AAAA1111AAAA1111", "a.html", 1), ErrPhase)
	assert.ErrorIs(t, p.AddReference(Reference{}), ErrPhase)
	_, err = e.Project("Other", "")
	assert.ErrorIs(t, err, ErrPhase)
	_, err = e.Generate(ctx)
	assert.ErrorIs(t, err, ErrPhase)

	_, err = e.Finalize(ctx)
	require.NoError(t, err)
	_, err = e.Finalize(ctx)
	assert.ErrorIs(t, err, ErrPhase, "finalize runs once")
}

// =============================================================================
// Generate
// =============================================================================

func TestGenerate_WritesProjectFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	stats, err := e.Generate(context.Background(), Producer{
		Assembly:    "Core",
		ProjectFile: "src/Core/Core.csproj",
		Run: func(_ context.Context, p *Project) error {
			if err := p.AddSymbol(declared("Foo", "class", "N.Foo"), declared("bar", "method", "N.Foo.bar")); err != nil {
				return err
			}
			return writeSource(p, "src/Foo.cs.html", FormatID(SymbolID("N.Foo")))
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &GenerateStats{Projects: 1, Symbols: 2, Declarations: 1}, stats)

	dir := filepath.Join(e.OutDir(), "Core")
	data, err := os.ReadFile(filepath.Join(dir, DeclarationsFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "bar;"), "declarations are sorted by name ignoring case")
	assert.True(t, strings.HasPrefix(lines[1], "Foo;"))

	info, err := os.ReadFile(filepath.Join(dir, ProjectInfoFile))
	require.NoError(t, err)
	assert.Equal(t, "src/Core/Core.csproj\n", string(info))

	x, err := declmap.ReadFile(filepath.Join(dir, DeclarationMapFile))
	require.NoError(t, err)
	assert.Equal(t, 1, x.Len())
}

func TestGenerate_FailingProducerDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	boom := errors.New("boom")
	stats, err := e.Generate(context.Background(),
		Producer{Assembly: "Bad", Run: func(context.Context, *Project) error { return boom }},
		Producer{Assembly: "Good", Run: func(_ context.Context, p *Project) error {
			return p.AddSymbol(declared("Foo", "class", "N.Foo"))
		}},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Symbols)
	assert.FileExists(t, filepath.Join(e.OutDir(), "Good", DeclarationsFile))
}

func TestGenerate_ConcurrentProducers(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	var producers []Producer
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		producers = append(producers, Producer{
			Assembly: name,
			Run: func(_ context.Context, p *Project) error {
				var wg sync.WaitGroup
				errs := make([]error, 20)
				for i := range 20 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						sig := name + ".T" + strings.Repeat("x", i)
						errs[i] = p.AddSymbol(declared("T", "class", sig))
						if errs[i] == nil {
							errs[i] = p.AddReference(Reference{
								ToAssemblyID: "A", ToSymbolID: FormatID(SymbolID("A.T")),
								FromLocalPath: "f.cs", LineText: "T t;", LineNumber: i, ColumnStart: 0, ColumnEnd: 1,
								Kind: ReferenceUsage,
							})
						}
					}()
				}
				wg.Wait()
				return errors.Join(errs...)
			},
		})
	}
	stats, err := e.Generate(context.Background(), producers...)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Projects)
	assert.Equal(t, 120, stats.Symbols)
	assert.Equal(t, 120, stats.References)

	got, err := refs.ReadFile(e.OutDir(), "A", FormatID(SymbolID("A.T")))
	require.NoError(t, err)
	assert.Len(t, got, 120)
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Generate(ctx, Producer{Assembly: "App"})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Worker pool
// =============================================================================

func TestRunParallel_CollectsErrorsInOrder(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	seen := make(map[int]bool)
	errs := runParallel(context.Background(), 3, 10, func(_ context.Context, i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		if i%4 == 1 {
			return errors.New(strings.Repeat("e", i))
		}
		return nil
	})
	assert.Len(t, seen, 10)
	require.Len(t, errs, 3)
	assert.Equal(t, "e", errs[0].Error())
	assert.Equal(t, "eeeee", errs[1].Error())
	assert.Equal(t, "eeeeeeeee", errs[2].Error())

	assert.Nil(t, runParallel(context.Background(), 2, 0, nil))
}
