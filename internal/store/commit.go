package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Commit replaces the manifest with m within a single transaction.
//
// Insert order respects FK dependencies:
//  1. Metadata
//  2. Projects, remembering assembly -> real ID
//  3. Referencing assemblies (depend on project_id)
//  4. Artifacts (project_id resolved by assembly name, NULL for global files)
func (s *Store) Commit(m *Manifest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit manifest: begin: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(tx); err != nil {
		return fmt.Errorf("commit manifest: clear: %w", err)
	}

	// 1. Metadata
	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.Exec("INSERT INTO metadata (key, value) VALUES (?, ?)", k, m.Metadata[k]); err != nil {
			return fmt.Errorf("commit manifest: metadata %q: %w", k, err)
		}
	}

	// 2. Projects
	projectIDs := make(map[string]int64, len(m.Projects))
	for i := range m.Projects {
		p := &m.Projects[i]
		id, err := insertProjectTx(tx, p)
		if err != nil {
			return fmt.Errorf("commit manifest: project %q: %w", p.Assembly, err)
		}
		projectIDs[p.Assembly] = id

		// 3. Referencing assemblies
		for _, ref := range p.Referencing {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO referencing_assemblies (project_id, assembly) VALUES (?, ?)", id, ref,
			); err != nil {
				return fmt.Errorf("commit manifest: referencing %q -> %q: %w", ref, p.Assembly, err)
			}
		}
	}

	// 4. Artifacts
	stmt, err := tx.Prepare("INSERT INTO artifacts (path, kind, project_id, size, hash) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit manifest: prepare artifacts: %w", err)
	}
	defer stmt.Close()
	for i := range m.Artifacts {
		a := &m.Artifacts[i]
		var projectID any
		if a.Project != "" {
			id, ok := projectIDs[a.Project]
			if !ok {
				return fmt.Errorf("commit manifest: artifact %q: unknown project %q", a.Path, a.Project)
			}
			projectID = id
		}
		res, err := stmt.Exec(a.Path, a.Kind, projectID, a.Size, a.Hash)
		if err != nil {
			return fmt.Errorf("commit manifest: artifact %q: %w", a.Path, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

func insertProjectTx(tx *sql.Tx, p *Project) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO projects (assembly, assembly_number, project_file, symbols, references_,
			referencing, patched, excluded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Assembly, p.AssemblyNumber, nullIfEmpty(p.ProjectFile), p.Symbols, p.References,
		len(p.Referencing), p.Patched, p.Excluded,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}
