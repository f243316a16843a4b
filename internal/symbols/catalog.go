package symbols

import (
	"log/slog"
	"math"
	"sort"

	"github.com/jward/xref/internal/concmap"
	"github.com/jward/xref/internal/indexerr"
)

// Catalog collects declared symbols from concurrent producers. Producers are
// numbered by name at Symbols time, so the result does not depend on the
// order in which producers finished.
type Catalog struct {
	sets   *concmap.Map[*concmap.List[Info]]
	logger *slog.Logger
}

// NewCatalog returns an empty catalog. A nil logger uses slog.Default.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		sets:   concmap.New[*concmap.List[Info]](),
		logger: logger,
	}
}

// Add appends symbols reported by producer. Safe for concurrent use.
func (c *Catalog) Add(producer string, infos ...Info) {
	l := c.sets.GetOrCreate(producer, concmap.NewList[Info])
	l.Append(infos...)
}

// Producers returns the producer names in numbering order.
func (c *Catalog) Producers() []string {
	names := c.sets.Keys()
	SortProducers(names)
	return names
}

// Producer returns the symbols reported by one producer, sorted. The
// assembly number is left unset.
func (c *Catalog) Producer(name string) []Info {
	l, ok := c.sets.Load(name)
	if !ok {
		return nil
	}
	infos := l.Snapshot()
	for i := range infos {
		infos[i].AssemblyName = name
	}
	Sort(infos)
	return infos
}

// Symbols numbers the producers, flattens their sets and sorts the result.
func (c *Catalog) Symbols() ([]Info, error) {
	names := c.Producers()
	sets := make([][]Info, 0, len(names))
	for _, name := range names {
		l, _ := c.sets.Load(name)
		infos := l.Snapshot()
		for i := range infos {
			infos[i].AssemblyName = name
		}
		sets = append(sets, infos)
	}
	all, err := AddAll(sets)
	if err != nil {
		return nil, err
	}
	Sort(all)
	return all, nil
}

// Finalize writes the master index for every collected symbol into dir.
func (c *Catalog) Finalize(dir string) (int, error) {
	all, err := c.Symbols()
	if err != nil {
		return 0, err
	}
	if err := WriteMasterIndex(dir, all); err != nil {
		return 0, err
	}
	c.logger.Info("catalog.finalize", "producers", c.sets.Len(), "symbols", len(all))
	return len(all), nil
}

// SortProducers orders producer names ignoring case, then ordinally.
func SortProducers(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if c := FoldCompare(names[i], names[j]); c != 0 {
			return c < 0
		}
		return names[i] < names[j]
	})
}

// AddAll numbers each set 0..N-1 in order and flattens them. Assembly
// numbers are 16 bits wide, so more than 65536 sets is an error.
func AddAll(sets [][]Info) ([]Info, error) {
	if len(sets) > math.MaxUint16+1 {
		return nil, indexerr.InconsistentReference("number assemblies", "%d producers exceed the %d assembly numbers", len(sets), math.MaxUint16+1)
	}
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]Info, 0, n)
	for i, s := range sets {
		for _, info := range s {
			info.AssemblyNumber = uint16(i)
			out = append(out, info)
		}
	}
	return out, nil
}

// Sort orders infos by Compare. Symbols that Compare equal are ordered by
// id, description, kind and glyph so the result is independent of input
// order.
func Sort(infos []Info) {
	sort.SliceStable(infos, func(i, j int) bool {
		a, b := &infos[i], &infos[j]
		if c := Compare(a, b); c != 0 {
			return c < 0
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Glyph < b.Glyph
	})
}
