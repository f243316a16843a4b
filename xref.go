package xref

// Per-project files, relative to <out>/<assembly>/.
const (
	DeclarationsFile   = "D.txt"
	DeclarationMapFile = "A.txt"
	ProjectInfoFile    = "P.txt"
	ReferencingFile    = "referencing.txt"
)

// Files at the root of the output directory.
const (
	ProjectMapFile = "projects.txt"
	StatsFile      = "stats.txt"
)
