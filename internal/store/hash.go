package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// HashFile returns the size and hex xxhash64 of the file at path.
func HashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, fmt.Sprintf("%016x", h.Sum64()), nil
}

// NewArtifact hashes root/rel and describes it.
func NewArtifact(root, rel, kind, project string) (Artifact, error) {
	size, sum, err := HashFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return Artifact{}, fmt.Errorf("hash artifact %s: %w", rel, err)
	}
	return Artifact{Path: filepath.ToSlash(rel), Kind: kind, Project: project, Size: size, Hash: sum}, nil
}

// Mismatch is an artifact whose file no longer matches the manifest.
type Mismatch struct {
	Artifact Artifact
	// Reason is "missing", "size" or "hash".
	Reason string
}

// Verify rehashes every recorded artifact under root.
func (s *Store) Verify(root string) ([]Mismatch, error) {
	arts, err := s.Artifacts()
	if err != nil {
		return nil, err
	}
	var out []Mismatch
	for _, a := range arts {
		size, sum, err := HashFile(filepath.Join(root, filepath.FromSlash(a.Path)))
		switch {
		case os.IsNotExist(err):
			out = append(out, Mismatch{Artifact: a, Reason: "missing"})
		case err != nil:
			return nil, fmt.Errorf("verify %s: %w", a.Path, err)
		case size != a.Size:
			out = append(out, Mismatch{Artifact: a, Reason: "size"})
		case sum != a.Hash:
			out = append(out, Mismatch{Artifact: a, Reason: "hash"})
		}
	}
	return out, nil
}
