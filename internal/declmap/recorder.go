package declmap

import "github.com/jward/xref/internal/concmap"

// Recorder collects declaration locations from concurrent writers. It
// implements the callback producers call each time they emit an id marker.
type Recorder struct {
	m *concmap.Map[*concmap.List[Location]]
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{m: concmap.New[*concmap.List[Location]]()}
}

// RecordDeclaration notes that the marker for id starts at offset in
// filePath.
func (r *Recorder) RecordDeclaration(id, filePath string, offset int64) {
	r.m.GetOrCreate(id, concmap.NewList[Location]).Append(Location{FilePath: filePath, Offset: offset})
}

// Len returns the number of distinct ids recorded.
func (r *Recorder) Len() int { return r.m.Len() }

// Index snapshots everything recorded so far.
func (r *Recorder) Index() *Index {
	x := NewIndex()
	for _, id := range r.m.Keys() {
		l, _ := r.m.Load(id)
		for _, loc := range l.Snapshot() {
			x.Add(id, loc)
		}
	}
	return x
}
