package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// --- Metadata ---

// Metadata returns every key/value pair.
func (s *Store) Metadata() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// MetadataInt returns an integer metadata value. ok is false when the key
// is absent.
func (s *Store) MetadataInt(key string) (int, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("metadata %q: %w", key, err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("metadata %q: %w", key, err)
	}
	return n, true, nil
}

// --- Projects ---

const projectColumns = `id, assembly, assembly_number, project_file, symbols, references_, patched, excluded`

func scanProject(sc interface{ Scan(...any) error }) (*Project, error) {
	p := &Project{}
	var file sql.NullString
	if err := sc.Scan(&p.ID, &p.Assembly, &p.AssemblyNumber, &file, &p.Symbols, &p.References, &p.Patched, &p.Excluded); err != nil {
		return nil, err
	}
	p.ProjectFile = stringOrEmpty(file)
	return p, nil
}

// Projects returns every project ordered by assembly number.
func (s *Store) Projects() ([]*Project, error) {
	rows, err := s.db.Query("SELECT " + projectColumns + " FROM projects ORDER BY assembly_number, assembly")
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	defer rows.Close()
	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if p.Referencing, err = s.referencing(p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ProjectByAssembly returns the named project, or nil if absent.
func (s *Store) ProjectByAssembly(assembly string) (*Project, error) {
	p, err := scanProject(s.db.QueryRow("SELECT "+projectColumns+" FROM projects WHERE assembly = ?", assembly))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project by assembly: %w", err)
	}
	if p.Referencing, err = s.referencing(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) referencing(projectID int64) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT assembly FROM referencing_assemblies WHERE project_id = ? ORDER BY assembly", projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("referencing assemblies: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan referencing assembly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Artifacts ---

const artifactQuery = `SELECT a.id, a.path, a.kind, COALESCE(p.assembly, ''), a.size, a.hash
	FROM artifacts a LEFT JOIN projects p ON p.id = a.project_id`

func scanArtifacts(rows *sql.Rows) ([]Artifact, error) {
	defer rows.Close()
	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.Path, &a.Kind, &a.Project, &a.Size, &a.Hash); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Artifacts returns every artifact ordered by path.
func (s *Store) Artifacts() ([]Artifact, error) {
	rows, err := s.db.Query(artifactQuery + " ORDER BY a.path")
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	return scanArtifacts(rows)
}

// ArtifactsByKind returns the artifacts of one kind ordered by path.
func (s *Store) ArtifactsByKind(kind string) ([]Artifact, error) {
	rows, err := s.db.Query(artifactQuery+" WHERE a.kind = ? ORDER BY a.path", kind)
	if err != nil {
		return nil, fmt.Errorf("artifacts by kind: %w", err)
	}
	return scanArtifacts(rows)
}

// Load reads the whole manifest back.
func (s *Store) Load() (*Manifest, error) {
	meta, err := s.Metadata()
	if err != nil {
		return nil, err
	}
	projects, err := s.Projects()
	if err != nil {
		return nil, err
	}
	arts, err := s.Artifacts()
	if err != nil {
		return nil, err
	}
	m := &Manifest{Metadata: meta, Artifacts: arts}
	for _, p := range projects {
		m.Projects = append(m.Projects, *p)
	}
	return m, nil
}
