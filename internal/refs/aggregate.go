package refs

import (
	"errors"
	"sort"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// Aggregate is every reference to one symbol, grouped for rendering:
// kind, then source assembly, then source file, then line.
type Aggregate struct {
	SymbolID   string
	SymbolName string
	Count      int
	Kinds      []KindGroup
}

// KindGroup holds the references of one kind.
type KindGroup struct {
	Kind       Kind
	Count      int
	Assemblies []AssemblyGroup
}

// AssemblyGroup holds the references from one source assembly.
type AssemblyGroup struct {
	Assembly string
	Count    int
	Files    []FileGroup
}

// FileGroup holds the references from one source file.
type FileGroup struct {
	Path  string
	Count int
	Lines []LineGroup
}

// LineGroup is one source line with every occurrence on it.
type LineGroup struct {
	Line        int
	URL         string
	Text        string
	Occurrences []Span
	// Rendered is Text with each occurrence wrapped in <i></i>.
	Rendered string
}

// Span is a half-open byte range within a line.
type Span struct {
	Start, End int
}

func lessReference(a, b *Reference) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.FromAssemblyID != b.FromAssemblyID {
		return a.FromAssemblyID < b.FromAssemblyID
	}
	if a.FromLocalPath != b.FromLocalPath {
		return a.FromLocalPath < b.FromLocalPath
	}
	if a.LineNumber != b.LineNumber {
		return a.LineNumber < b.LineNumber
	}
	if a.ColumnStart != b.ColumnStart {
		return a.ColumnStart < b.ColumnStart
	}
	if a.ColumnEnd != b.ColumnEnd {
		return a.ColumnEnd < b.ColumnEnd
	}
	if a.URL != b.URL {
		return a.URL < b.URL
	}
	return a.LineText < b.LineText
}

// Group builds the aggregate of refs. Exact duplicate occurrences collapse;
// overlapping or out-of-range spans are InconsistentReference.
func Group(symbolID string, refs []Reference) (*Aggregate, error) {
	agg := &Aggregate{SymbolID: symbolID, SymbolName: SymbolName(refs)}
	if agg.SymbolName == "" {
		agg.SymbolName = symbolID
	}
	sorted := sortedCopy(refs)

	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sameLine(&sorted[i], &sorted[j]) {
			j++
		}
		line, err := groupLine(sorted[i:j])
		if err != nil {
			return nil, err
		}
		agg.add(&sorted[i], line)
		i = j
	}
	return agg, nil
}

func sameLine(a, b *Reference) bool {
	return a.Kind == b.Kind &&
		a.FromAssemblyID == b.FromAssemblyID &&
		a.FromLocalPath == b.FromLocalPath &&
		a.LineNumber == b.LineNumber
}

func groupLine(refs []Reference) (LineGroup, error) {
	first := &refs[0]
	g := LineGroup{Line: first.LineNumber, URL: first.URL, Text: first.LineText}
	for i := range refs {
		s := Span{refs[i].ColumnStart, refs[i].ColumnEnd}
		if n := len(g.Occurrences); n > 0 && g.Occurrences[n-1] == s {
			continue
		}
		g.Occurrences = append(g.Occurrences, s)
	}
	rendered, err := MergeOccurrences(g.Text, g.Occurrences)
	if err != nil {
		var ie *indexerr.Error
		if errors.As(err, &ie) {
			ie.Path = first.FromLocalPath
		}
		return LineGroup{}, err
	}
	g.Rendered = rendered
	return g, nil
}

func (a *Aggregate) add(r *Reference, line LineGroup) {
	n := len(line.Occurrences)
	a.Count += n

	if len(a.Kinds) == 0 || a.Kinds[len(a.Kinds)-1].Kind != r.Kind {
		a.Kinds = append(a.Kinds, KindGroup{Kind: r.Kind})
	}
	k := &a.Kinds[len(a.Kinds)-1]
	k.Count += n

	if len(k.Assemblies) == 0 || k.Assemblies[len(k.Assemblies)-1].Assembly != r.FromAssemblyID {
		k.Assemblies = append(k.Assemblies, AssemblyGroup{Assembly: r.FromAssemblyID})
	}
	asm := &k.Assemblies[len(k.Assemblies)-1]
	asm.Count += n

	if len(asm.Files) == 0 || asm.Files[len(asm.Files)-1].Path != r.FromLocalPath {
		asm.Files = append(asm.Files, FileGroup{Path: r.FromLocalPath})
	}
	f := &asm.Files[len(asm.Files)-1]
	f.Count += n
	f.Lines = append(f.Lines, line)
}

// MergeOccurrences wraps each span of text in <i></i>. Spans are sorted by
// start; duplicates must already be removed. A span outside the text or
// overlapping its predecessor is InconsistentReference.
func MergeOccurrences(text string, spans []Span) (string, error) {
	const op = "merge occurrences"
	sorted := append([]Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var b strings.Builder
	b.Grow(len(text) + 7*len(sorted))
	current := 0
	for _, s := range sorted {
		if s.Start < 0 || s.Start >= s.End || s.End > len(text) {
			return "", indexerr.InconsistentReference(op, "span [%d,%d) outside line of %d bytes", s.Start, s.End, len(text))
		}
		if s.Start < current {
			return "", indexerr.InconsistentReference(op, "span [%d,%d) overlaps previous span ending at %d", s.Start, s.End, current)
		}
		b.WriteString(text[current:s.Start])
		b.WriteString("<i>")
		b.WriteString(text[s.Start:s.End])
		b.WriteString("</i>")
		current = s.End
	}
	b.WriteString(text[current:])
	return b.String(), nil
}

// ReadAndAggregate reads the references file of symbol and groups it. A
// missing file is an empty aggregate.
func ReadAndAggregate(outDir, assembly, symbol string) (*Aggregate, error) {
	refs, err := ReadFile(outDir, assembly, symbol)
	if err != nil {
		if errors.Is(err, indexerr.ErrMissingArtifact) {
			return &Aggregate{SymbolID: symbol, SymbolName: symbol}, nil
		}
		return nil, err
	}
	return Group(symbol, refs)
}
