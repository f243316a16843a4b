package main

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISymbol is a JSON-friendly declared symbol.
type CLISymbol struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Glyph       uint16 `json:"glyph"`
	Assembly    string `json:"assembly"`
	ProjectFile string `json:"project_file,omitempty"`
	URL         string `json:"url"`
}

// CLIProject is one line of the project map.
type CLIProject struct {
	Number      int    `json:"number"`
	Assembly    string `json:"assembly"`
	ProjectFile string `json:"project_file,omitempty"`
	Referencing int    `json:"referencing"`
}

// CLITarget is the result of resolving an id through the redirect tables.
type CLITarget struct {
	Assembly string `json:"assembly"`
	ID       string `json:"id"`
	Found    bool   `json:"found"`
	File     string `json:"file,omitempty"`
	Partial  string `json:"partial,omitempty"`
}

// CLIReferences is the grouped references to one symbol.
type CLIReferences struct {
	Assembly string            `json:"assembly"`
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Count    int               `json:"count"`
	Kinds    []CLIReferenceSet `json:"kinds"`
}

// CLIReferenceSet holds the references of one kind.
type CLIReferenceSet struct {
	Kind   string             `json:"kind"`
	Header string             `json:"header"`
	Lines  []CLIReferenceLine `json:"lines"`
}

// CLIReferenceLine is one source line with at least one reference.
type CLIReferenceLine struct {
	Assembly    string `json:"assembly"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Text        string `json:"text"`
	Occurrences int    `json:"occurrences"`
	URL         string `json:"url"`
}

// CLIStats summarizes a finalize run.
type CLIStats struct {
	Projects     int `json:"projects"`
	Symbols      int `json:"symbols"`
	Placeholders int `json:"placeholders"`
	References   int `json:"references"`
	Pages        int `json:"pages"`
	Patched      int `json:"patched"`
	Failed       int `json:"failed"`
}

// CLIManifest is the build manifest without its artifact list.
type CLIManifest struct {
	Metadata  map[string]string `json:"metadata"`
	Projects  []CLIProject      `json:"projects"`
	Artifacts int               `json:"artifacts"`
}

// CLIMismatch is an artifact that no longer matches the manifest.
type CLIMismatch struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Project string `json:"project,omitempty"`
	Reason  string `json:"reason"`
}
