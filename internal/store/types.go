package store

// Metadata keys.
const (
	MetaSignificantIDLength = "significant_id_length"
	MetaMaxTableEntries     = "max_table_entries"
	MetaFinishedAt          = "finished_at"
	MetaSymbols             = "symbols"
	MetaReferences          = "references"
	MetaPatched             = "patched_locations"
)

// Artifact kinds.
const (
	ArtifactMasterIndex  = "master_index"
	ArtifactHuffman      = "huffman"
	ArtifactDeclarations = "declarations"
	ArtifactDeclMap      = "declaration_map"
	ArtifactRedirect     = "redirect"
	ArtifactPartial      = "partial"
	ArtifactProjectMap   = "project_map"
	ArtifactStats        = "stats"
)

// Project is one assembly seen by a finalize run.
type Project struct {
	ID             int64
	Assembly       string
	AssemblyNumber int
	ProjectFile    string
	Symbols        int
	References     int
	Patched        int
	Excluded       bool
	// Referencing lists the other assemblies that reference this one.
	Referencing []string
}

// Artifact is one file produced by a run. Path is relative to the output
// directory and uses forward slashes.
type Artifact struct {
	ID      int64
	Path    string
	Kind    string
	Project string
	Size    int64
	Hash    string
}

// Manifest is everything recorded for one run.
type Manifest struct {
	Metadata  map[string]string
	Projects  []Project
	Artifacts []Artifact
}
