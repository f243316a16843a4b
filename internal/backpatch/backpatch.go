// Package backpatch overwrites the id markers of declarations whose symbols
// turned out to have no references.
//
// Generation writes a 16-character id marker for every declaration before the
// reference graph is known. Once every producer has finished, each marker of
// an unreferenced symbol is replaced in place with the zero id so readers of
// the file know there is nothing to link to. Patching must not overlap with
// any other writer of the same file; callers run it only after generation
// has been joined.
package backpatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/indexerr"
	"github.com/jward/xref/internal/symbols"
	"golang.org/x/sync/errgroup"
)

// Plan maps a file path to the ascending, deduplicated offsets to patch.
type Plan map[string][]int64

// Files returns the planned file paths in order.
func (p Plan) Files() []string {
	files := make([]string, 0, len(p))
	for f := range p {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Locations returns the total number of planned offsets.
func (p Plan) Locations() int {
	n := 0
	for _, offs := range p {
		n += len(offs)
	}
	return n
}

// PlanFor collects the markers to patch: every non-zero offset of every
// symbol for which hasReferences is false.
func PlanFor(x *declmap.Index, hasReferences func(id string) bool) Plan {
	plan := make(Plan)
	for _, e := range x.Entries() {
		if hasReferences(e.ID) {
			continue
		}
		for _, loc := range e.Locations {
			if loc.Offset == 0 {
				continue
			}
			plan[loc.FilePath] = append(plan[loc.FilePath], loc.Offset)
		}
	}
	for f, offs := range plan {
		sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
		plan[f] = dedupe(offs)
	}
	return plan
}

func dedupe(offs []int64) []int64 {
	out := offs[:0]
	for i, o := range offs {
		if i > 0 && o == offs[i-1] {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Patcher applies plans.
type Patcher struct {
	// Root is joined to relative plan paths.
	Root string
	// Marker is written at every offset. Defaults to symbols.ZeroID.
	Marker      string
	Parallelism int
	Logger      *slog.Logger
}

// Result reports a patch run.
type Result struct {
	Files     int
	Locations int
	// Failed maps a file path to the error that aborted it.
	Failed map[string]error
}

// Err summarizes the failed files, or returns nil.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	files := make([]string, 0, len(r.Failed))
	for f := range r.Failed {
		files = append(files, f)
	}
	sort.Strings(files)
	return fmt.Errorf("backpatch had %d error(s): %w", len(files), r.Failed[files[0]])
}

// Apply patches every file of plan in parallel. A file that is missing or
// has an offset past its end is left untouched and recorded in
// Result.Failed; other files continue. Apply returns an error only when ctx
// is cancelled.
func (p *Patcher) Apply(ctx context.Context, plan Plan) (*Result, error) {
	marker := p.Marker
	if marker == "" {
		marker = symbols.ZeroID
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	files := plan.Files()
	errs := make([]error, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := p.resolve(f)
			if err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = PatchFile(path, plan[f], []byte(marker))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Failed: make(map[string]error)}
	for i, f := range files {
		if errs[i] != nil {
			logger.Warn("backpatch.file.failed", "file", f, "error", errs[i])
			res.Failed[f] = errs[i]
			continue
		}
		res.Files++
		res.Locations += len(plan[f])
	}
	logger.Info("backpatch.done", "files", res.Files, "locations", res.Locations, "failed", len(res.Failed))
	return res, nil
}

// resolve maps a plan path to a file. With a Root, the path must stay
// inside it.
func (p *Patcher) resolve(f string) (string, error) {
	local := filepath.FromSlash(f)
	if p.Root == "" {
		return local, nil
	}
	if !filepath.IsLocal(local) {
		return "", indexerr.InconsistentReference("backpatch", "path %q leaves %s", f, p.Root)
	}
	return filepath.Join(p.Root, local), nil
}

// PatchFile writes marker at each offset of path. Every offset is checked
// against the file size before the first write, so a bad offset leaves the
// file unchanged.
func PatchFile(path string, offsets []int64, marker []byte) error {
	const op = "backpatch"
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return indexerr.MissingArtifact(op, path, err)
		}
		return indexerr.IO(op, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return indexerr.IO(op, path, err)
	}
	width := int64(len(marker))
	for _, off := range offsets {
		if off < 0 || off+width > info.Size() {
			f.Close()
			return indexerr.CorruptIndex(op, path, "offset %d + %d past end of %d-byte file", off, width, info.Size())
		}
	}
	for _, off := range offsets {
		if _, err := f.WriteAt(marker, off); err != nil {
			f.Close()
			return indexerr.IO(op, path, err)
		}
	}
	if err := f.Close(); err != nil {
		return indexerr.IO(op, path, err)
	}
	return nil
}