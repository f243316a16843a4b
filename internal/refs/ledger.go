package refs

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/jward/xref/internal/concmap"
	"github.com/jward/xref/internal/indexerr"
)

type symbolLists = concmap.Map[*concmap.List[Reference]]

func newSymbolLists() *symbolLists {
	return concmap.New[*concmap.List[Reference]]()
}

// Ledger buffers references in memory, keyed by target assembly and symbol
// and by source assembly and symbol. Record is safe for concurrent use.
type Ledger struct {
	byTarget *concmap.Map[*symbolLists]
	bySource *concmap.Map[*symbolLists]
	logger   *slog.Logger
}

// NewLedger returns an empty ledger. A nil logger uses slog.Default.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		byTarget: concmap.New[*symbolLists](),
		bySource: concmap.New[*symbolLists](),
		logger:   logger,
	}
}

// Record validates r and adds it to both indexes.
func (l *Ledger) Record(r Reference) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ToSymbolName == "" {
		r.ToSymbolName = r.Token()
	}
	l.byTarget.GetOrCreate(r.ToAssemblyID, newSymbolLists).
		GetOrCreate(r.ToSymbolID, concmap.NewList[Reference]).
		Append(r)
	l.bySource.GetOrCreate(r.FromAssemblyID, newSymbolLists).
		GetOrCreate(r.ToSymbolID, concmap.NewList[Reference]).
		Append(r)
	return nil
}

// TargetAssemblies returns every assembly that has been referenced, sorted.
func (l *Ledger) TargetAssemblies() []string {
	return l.byTarget.Keys()
}

// Symbols returns the referenced symbols of assembly, sorted.
func (l *Ledger) Symbols(assembly string) []string {
	m, ok := l.byTarget.Load(assembly)
	if !ok {
		return nil
	}
	return m.Keys()
}

// References returns the buffered references to symbol in assembly, in
// arrival order.
func (l *Ledger) References(assembly, symbol string) []Reference {
	m, ok := l.byTarget.Load(assembly)
	if !ok {
		return nil
	}
	list, ok := m.Load(symbol)
	if !ok {
		return nil
	}
	return list.Snapshot()
}

// ReferencingAssemblies returns the assemblies other than target that
// reference at least one of its symbols, sorted.
func (l *Ledger) ReferencingAssemblies(target string) []string {
	var out []string
	for _, src := range l.bySource.Keys() {
		if src == target {
			continue
		}
		m, _ := l.bySource.Load(src)
		if referencesAssembly(m, target) {
			out = append(out, src)
		}
	}
	return out
}

func referencesAssembly(m *symbolLists, target string) bool {
	for _, sym := range m.Keys() {
		list, _ := m.Load(sym)
		for _, r := range list.Snapshot() {
			if r.ToAssemblyID == target {
				return true
			}
		}
	}
	return false
}

// PersistStats summarizes one Persist call.
type PersistStats struct {
	Symbols    int
	References int
	Failed     int
}

// Persist appends the buffered references of every symbol in assembly to
// its references file under outDir, sorted so that identical input gives
// identical files. A symbol that fails to write is logged
// and skipped. The returned error is non-nil only when the references
// directory cannot be created or when any symbol failed.
func (l *Ledger) Persist(outDir, assembly string) (PersistStats, error) {
	var stats PersistStats
	m, ok := l.byTarget.Load(assembly)
	if !ok {
		return stats, nil
	}
	dir := Dir(outDir, assembly)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stats, indexerr.IO("persist references", dir, err)
	}

	var errs []error
	for _, sym := range m.Keys() {
		list, _ := m.Load(sym)
		refs := sortedCopy(list.Snapshot())
		if err := appendRecords(FilePath(outDir, assembly, sym), refs); err != nil {
			l.logger.Warn("refs.persist.failed", "assembly", assembly, "symbol", sym, "error", err)
			errs = append(errs, err)
			stats.Failed++
			continue
		}
		stats.Symbols++
		stats.References += len(refs)
	}
	l.logger.Debug("refs.persist", "assembly", assembly, "symbols", stats.Symbols, "references", stats.References)
	if len(errs) > 0 {
		return stats, fmt.Errorf("persist %s had %d error(s): %w", assembly, len(errs), errs[0])
	}
	return stats, nil
}

func appendRecords(path string, refs []Reference) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return indexerr.IO("persist references", path, err)
	}
	w := bufio.NewWriter(f)
	for i := range refs {
		if err := EncodeRecord(w, &refs[i]); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return indexerr.IO("persist references", path, err)
	}
	if err := f.Close(); err != nil {
		return indexerr.IO("persist references", path, err)
	}
	return nil
}

// sortedCopy orders refs independently of arrival order.
func sortedCopy(refs []Reference) []Reference {
	out := append([]Reference(nil), refs...)
	sort.SliceStable(out, func(i, j int) bool { return lessReference(&out[i], &out[j]) })
	return out
}
