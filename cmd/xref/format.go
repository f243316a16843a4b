package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tASSEMBLY\tDESCRIPTION")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Kind, s.Assembly, s.Description)
	}
	tw.Flush()
}

// formatProjectsText formats CLIProject results as aligned columns.
func formatProjectsText(w io.Writer, projects []CLIProject) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tASSEMBLY\tREFERENCING\tPROJECT FILE")
	for _, p := range projects {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.Number, p.Assembly, p.Referencing, p.ProjectFile)
	}
	tw.Flush()
}

// formatTargetText prints where an id resolves to.
func formatTargetText(w io.Writer, t CLITarget) {
	switch {
	case !t.Found:
		fmt.Fprintf(w, "%s: not found in %s\n", t.ID, t.Assembly)
	case t.Partial != "":
		fmt.Fprintf(w, "%s: ambiguous, see %s/%s\n", t.ID, t.Assembly, t.Partial)
	default:
		fmt.Fprintf(w, "%s: %s/%s\n", t.ID, t.Assembly, t.File)
	}
}

// formatReferencesText prints each kind header followed by its lines.
func formatReferencesText(w io.Writer, r CLIReferences) {
	if r.Count == 0 {
		fmt.Fprintf(w, "No references to %s\n", r.Name)
		return
	}
	for _, k := range r.Kinds {
		fmt.Fprintln(w, k.Header)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, l := range k.Lines {
			fmt.Fprintf(tw, "  %s\t%s:%d\t%s\n", l.Assembly, l.File, l.Line, strings.TrimSpace(l.Text))
		}
		tw.Flush()
	}
}

// formatStatsText formats CLIStats as key/value lines.
func formatStatsText(w io.Writer, s CLIStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Projects:\t%d\n", s.Projects)
	fmt.Fprintf(tw, "Symbols:\t%d\n", s.Symbols)
	fmt.Fprintf(tw, "Placeholders:\t%d\n", s.Placeholders)
	fmt.Fprintf(tw, "References:\t%d\n", s.References)
	fmt.Fprintf(tw, "Pages:\t%d\n", s.Pages)
	fmt.Fprintf(tw, "Patched:\t%d\n", s.Patched)
	fmt.Fprintf(tw, "Failed:\t%d\n", s.Failed)
	tw.Flush()
}

// formatManifestText formats CLIManifest as readable text.
func formatManifestText(w io.Writer, m CLIManifest) {
	fmt.Fprintln(w, "Build Manifest")
	fmt.Fprintln(w, "==============")
	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%s\n", k, m.Metadata[k])
	}
	fmt.Fprintf(tw, "artifacts:\t%d\n", m.Artifacts)
	tw.Flush()
	fmt.Fprintln(w)
	formatProjectsText(w, m.Projects)
}

// formatMismatchesText lists artifacts that fail verification.
func formatMismatchesText(w io.Writer, bad []CLIMismatch) {
	if len(bad) == 0 {
		fmt.Fprintln(w, "All artifacts match the manifest")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tREASON")
	for _, m := range bad {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Path, m.Kind, m.Reason)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIProject:
		formatProjectsText(w, v)
	case CLITarget:
		formatTargetText(w, v)
	case CLIReferences:
		formatReferencesText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case CLIManifest:
		formatManifestText(w, v)
	case []CLIMismatch:
		formatMismatchesText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLISymbol:
		return len(r)
	case []CLIProject:
		return len(r)
	case []CLIMismatch:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
