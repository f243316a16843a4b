package main_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jward/xref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the xref CLI into a temp directory.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "xref"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "xref")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the module root by walking up from this file.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

var (
	widgetID = xref.FormatID(xref.SymbolID("N.Widget"))
	unusedID = xref.FormatID(xref.SymbolID("N.IUnused"))
)

// generateFixture runs Generate for two projects and leaves finalization to
// the CLI.
func generateFixture(t *testing.T) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	e, err := xref.New(out, xref.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	writeMarkers := func(p *xref.Project, rel string, ids ...string) error {
		path := filepath.Join(p.Dir(), rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		content := ""
		for _, id := range ids {
			content += `<a id="`
			if err := p.RecordDeclaration(id, rel, int64(len(content))); err != nil {
				return err
			}
			content += id + "\"></a>\n"
		}
		return os.WriteFile(path, []byte(content), 0o644)
	}

	_, err = e.Generate(context.Background(),
		xref.Producer{
			Assembly:    "Core",
			ProjectFile: "src/Core/Core.csproj",
			Run: func(_ context.Context, p *xref.Project) error {
				if err := p.AddSymbol(
					xref.Symbol{ID: xref.SymbolID("N.Widget"), Name: "Widget", Kind: "class", Description: "N.Widget", Glyph: 1},
					xref.Symbol{ID: xref.SymbolID("N.IUnused"), Name: "IUnused", Kind: "interface", Description: "N.IUnused", Glyph: 2},
				); err != nil {
					return err
				}
				return writeMarkers(p, "Widget.cs.html", widgetID, unusedID)
			},
		},
		xref.Producer{
			Assembly:    "App",
			ProjectFile: "src/App/App.csproj",
			Run: func(_ context.Context, p *xref.Project) error {
				return p.AddReference(xref.Reference{
					ToAssemblyID:  "Core",
					ToSymbolID:    widgetID,
					FromLocalPath: "Program.cs",
					LineText:      "var w = new Widget();",
					LineNumber:    4,
					ColumnStart:   12,
					ColumnEnd:     18,
					Kind:          xref.Instantiation,
				})
			},
		},
	)
	require.NoError(t, err)
	return out
}

// runCLI executes the binary and returns stdout. A non-zero exit is
// allowed when the command still printed a result.
func runCLI(t *testing.T, bin string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = t.TempDir()
	stdout, err := cmd.Output()
	return string(stdout), err
}

func runJSON(t *testing.T, bin string, args ...string) map[string]any {
	t.Helper()
	stdout, err := runCLI(t, bin, args...)
	if err != nil && stdout == "" {
		t.Fatalf("%v failed with no output: %v", args, err)
	}
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result), "invalid JSON output: %s", stdout)
	return result
}

func TestCLI_FinalizeAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	out := generateFixture(t)

	result := runJSON(t, bin, "finalize", "--out", out, "-j", "2")
	assert.Equal(t, "finalize", result["command"])
	stats := result["results"].(map[string]any)
	assert.Equal(t, float64(2), stats["symbols"])
	assert.Equal(t, float64(1), stats["patched"])

	result = runJSON(t, bin, "query", "projects", "--out", out)
	projects := result["results"].([]any)
	require.Len(t, projects, 2)
	assert.Equal(t, "App", projects[0].(map[string]any)["assembly"])
	assert.Equal(t, float64(1), projects[1].(map[string]any)["referencing"])

	result = runJSON(t, bin, "query", "lookup", "widget", "--out", out)
	found := result["results"].([]any)
	require.Len(t, found, 1)
	assert.Equal(t, widgetID, found[0].(map[string]any)["id"])

	result = runJSON(t, bin, "query", "symbols", "--out", out, "--kind", "interface")
	assert.Equal(t, float64(1), result["total_count"])

	result = runJSON(t, bin, "query", "resolve", "Core", strings.ToLower(unusedID), "--out", out)
	target := result["results"].(map[string]any)
	assert.Equal(t, true, target["found"])
	assert.Equal(t, "Widget.cs.html", target["file"])

	result = runJSON(t, bin, "query", "references", "Core", widgetID, "--out", out)
	refs := result["results"].(map[string]any)
	assert.Equal(t, float64(1), refs["count"])
	assert.Equal(t, "Widget", refs["name"])

	result = runJSON(t, bin, "query", "manifest", "--out", out)
	manifest := result["results"].(map[string]any)
	assert.Equal(t, "8", manifest["metadata"].(map[string]any)["significant_id_length"])
}

func TestCLI_VerifyDetectsTampering(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	out := generateFixture(t)
	_, err := runCLI(t, bin, "finalize", "--out", out)
	require.NoError(t, err)

	result := runJSON(t, bin, "verify", "--out", out)
	assert.Equal(t, float64(0), result["total_count"])

	require.NoError(t, os.WriteFile(filepath.Join(out, "Core", "a.html"), []byte("changed"), 0o644))
	stdout, err := runCLI(t, bin, "verify", "--out", out, "--format", "text")
	require.Error(t, err)
	assert.Contains(t, stdout, "Core/a.html")
}

func TestCLI_ConfigFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	path := filepath.Join(t.TempDir(), "xref.toml")
	require.NoError(t, os.WriteFile(path, []byte("significant_id_length = 6\nexclude_projects = [\"Test.*\"]\n"), 0o644))

	stdout, err := runCLI(t, bin, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "significant_id_length = 6")
	assert.Contains(t, stdout, "Test.*")

	require.NoError(t, os.WriteFile(path, []byte("significant_id_length = 40\n"), 0o644))
	_, err = runCLI(t, bin, "config", "--config", path)
	require.Error(t, err)
}

func TestCLI_QueryWithoutIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	result := runJSON(t, bin, "query", "projects", "--out", t.TempDir())
	assert.Contains(t, result["error"], "run 'xref finalize' first")
}
