package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/xref"
	"github.com/jward/xref/internal/refs"
	"github.com/jward/xref/internal/store"
	"github.com/jward/xref/internal/symbols"
	"github.com/spf13/cobra"
)

var (
	flagLimit    int
	flagOffset   int
	flagKind     string
	flagAssembly string
	flagPrefix   string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a finalized index",
	Long:  "Run read-only queries against a finalized output directory. Ids are 16 hex digits in either case.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	symbolsCmd.Flags().StringVar(&flagKind, "kind", "", "filter by symbol kind (e.g. class, method)")
	symbolsCmd.Flags().StringVar(&flagAssembly, "assembly", "", "filter by declaring assembly")
	symbolsCmd.Flags().StringVar(&flagPrefix, "prefix", "", "filter by name prefix, ignoring case")

	queryCmd.AddCommand(projectsCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(lookupCmd)
	queryCmd.AddCommand(resolveCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(manifestCmd)
}

// --- Helpers ---

// openIndex opens the index under --out.
func openIndex() (*xref.Index, error) {
	if _, err := os.Stat(filepath.Join(flagOut, xref.ProjectMapFile)); os.IsNotExist(err) {
		return nil, fmt.Errorf("index not found: %s (run 'xref finalize' first)", flagOut)
	}
	return xref.Open(flagOut, xref.WithConfig(cfg), xref.WithLogger(logger))
}

// openStore opens the build manifest under --out.
func openStore() (*store.Store, error) {
	path := filepath.Join(flagOut, store.FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest not found: %s (run 'xref finalize' first)", path)
	}
	return store.NewStore(path)
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// paginate applies --offset and --limit to n items and returns the bounds.
func paginate(n int) (int, int) {
	limit := flagLimit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	start := min(max(flagOffset, 0), n)
	return start, min(start+limit, n)
}

func symbolToCLI(s xref.Symbol) CLISymbol {
	return CLISymbol{
		ID:          xref.FormatID(s.ID),
		Name:        s.Name,
		Kind:        s.Kind,
		Description: s.Description,
		Glyph:       s.Glyph,
		Assembly:    s.AssemblyName,
		ProjectFile: s.ProjectFilePath,
		URL:         s.URL(),
	}
}

func projectsToCLI(entries []xref.ProjectEntry) []CLIProject {
	out := make([]CLIProject, len(entries))
	for i, e := range entries {
		out[i] = CLIProject{Number: i, Assembly: e.Assembly, ProjectFile: e.ProjectFile, Referencing: e.Referencing}
	}
	return out
}

func statsToCLI(s *xref.Stats) CLIStats {
	return CLIStats{
		Projects:     s.Projects,
		Symbols:      s.Symbols,
		Placeholders: s.Placeholders,
		References:   s.References,
		Pages:        s.Pages,
		Patched:      s.Patched,
		Failed:       s.Failed,
	}
}

func intPtr(i int) *int { return &i }

// --- Commands ---

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects in assembly-number order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return outputError("projects", err)
		}
		return outputResult(CLIResult{Command: "projects", Results: projectsToCLI(idx.Projects())})
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List declared symbols in master index order",
	Args:  cobra.NoArgs,
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	idx, err := openIndex()
	if err != nil {
		return outputError("symbols", err)
	}
	matched := []CLISymbol{}
	for _, s := range idx.Symbols() {
		if flagKind != "" && s.Kind != flagKind {
			continue
		}
		if flagAssembly != "" && s.AssemblyName != flagAssembly {
			continue
		}
		if flagPrefix != "" && (len(s.Name) < len(flagPrefix) || symbols.FoldCompare(s.Name[:len(flagPrefix)], flagPrefix) != 0) {
			continue
		}
		matched = append(matched, symbolToCLI(s))
	}
	start, end := paginate(len(matched))
	return outputResult(CLIResult{
		Command:    "symbols",
		Results:    matched[start:end],
		TotalCount: intPtr(len(matched)),
	})
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Find symbols by exact name, ignoring case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return outputError("lookup", err)
		}
		found := idx.Lookup(args[0])
		out := make([]CLISymbol, len(found))
		for i, s := range found {
			out[i] = symbolToCLI(s)
		}
		return outputResult(CLIResult{Command: "lookup", Results: out})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <assembly> <id>",
	Short: "Resolve a symbol id through an assembly's redirect tables",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return outputError("resolve", err)
		}
		target, ok, err := idx.Resolve(args[0], args[1])
		if err != nil {
			return outputError("resolve", err)
		}
		return outputResult(CLIResult{Command: "resolve", Results: CLITarget{
			Assembly: args[0],
			ID:       strings.ToUpper(args[1]),
			Found:    ok,
			File:     target.File,
			Partial:  target.Partial,
		}})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references <assembly> <id>",
	Short: "List the references to a symbol, grouped by kind",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return outputError("references", err)
		}
		agg, err := idx.References(args[0], args[1])
		if err != nil {
			return outputError("references", err)
		}
		return outputResult(CLIResult{Command: "references", Results: referencesToCLI(args[0], agg)})
	},
}

func referencesToCLI(assembly string, agg *xref.Aggregate) CLIReferences {
	out := CLIReferences{Assembly: assembly, ID: agg.SymbolID, Name: agg.SymbolName, Count: agg.Count, Kinds: []CLIReferenceSet{}}
	for _, k := range agg.Kinds {
		set := CLIReferenceSet{Kind: k.Kind.String(), Header: refs.Header(k.Kind, k.Count, agg.SymbolName)}
		for _, a := range k.Assemblies {
			for _, f := range a.Files {
				for _, l := range f.Lines {
					set.Lines = append(set.Lines, CLIReferenceLine{
						Assembly:    a.Assembly,
						File:        f.Path,
						Line:        l.Line,
						Text:        l.Text,
						Occurrences: len(l.Occurrences),
						URL:         l.URL,
					})
				}
			}
		}
		out.Kinds = append(out.Kinds, set)
	}
	return out
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Show the build manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("manifest", err)
		}
		defer s.Close()
		m, err := s.Load()
		if err != nil {
			return outputError("manifest", err)
		}
		out := CLIManifest{Metadata: m.Metadata, Artifacts: len(m.Artifacts), Projects: make([]CLIProject, len(m.Projects))}
		for i, p := range m.Projects {
			out.Projects[i] = CLIProject{
				Number:      p.AssemblyNumber,
				Assembly:    p.Assembly,
				ProjectFile: p.ProjectFile,
				Referencing: len(p.Referencing),
			}
		}
		return outputResult(CLIResult{Command: "manifest", Results: out})
	},
}
