package symbols

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/jward/xref/internal/huffman"
	"github.com/jward/xref/internal/indexerr"
)

// Artifact names inside the index directory.
const (
	HuffmanFile     = "Huffman.txt"
	MasterIndexFile = "DeclaredSymbols.txt"
)

// WriteMasterIndex builds the prefix codec over every description and writes
// the tree and the master index into dir. infos must already be sorted. An
// empty slice writes nothing.
//
// Master index layout, little-endian:
//
//	int32 count
//	count x { uvarint assembly, uvarint len + name, uint64 id,
//	          uvarint len + compressed description, uvarint glyph }
func WriteMasterIndex(dir string, infos []Info) error {
	const op = "write master index"
	if len(infos) == 0 {
		return nil
	}
	if len(infos) > math.MaxInt32 {
		return indexerr.InconsistentReference(op, "%d symbols exceed the index header", len(infos))
	}

	corpus := make([]string, len(infos))
	for i := range infos {
		corpus[i] = infos[i].Description
	}
	tree := huffman.BuildFromStrings(corpus)

	treeData, err := tree.MarshalBinary()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		buf.Write(scratch[:n])
	}
	binary.Write(&buf, binary.LittleEndian, int32(len(infos)))
	for i := range infos {
		s := &infos[i]
		desc, err := tree.Compress(s.Description)
		if err != nil {
			return err
		}
		putUvarint(uint64(s.AssemblyNumber))
		putUvarint(uint64(len(s.Name)))
		buf.WriteString(s.Name)
		binary.Write(&buf, binary.LittleEndian, s.ID)
		putUvarint(uint64(len(desc)))
		buf.Write(desc)
		putUvarint(uint64(s.Glyph))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return indexerr.IO(op, dir, err)
	}
	treePath := filepath.Join(dir, HuffmanFile)
	if err := os.WriteFile(treePath, treeData, 0o644); err != nil {
		return indexerr.IO(op, treePath, err)
	}
	indexPath := filepath.Join(dir, MasterIndexFile)
	if err := os.WriteFile(indexPath, buf.Bytes(), 0o644); err != nil {
		return indexerr.IO(op, indexPath, err)
	}
	return nil
}

// ReadMasterIndex decodes the artifacts written by WriteMasterIndex. Kind and
// assembly names are not stored and come back empty.
func ReadMasterIndex(dir string) ([]Info, error) {
	const op = "read master index"
	treePath := filepath.Join(dir, HuffmanFile)
	treeData, err := os.ReadFile(treePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, indexerr.MissingArtifact(op, treePath, err)
		}
		return nil, indexerr.IO(op, treePath, err)
	}
	tree, err := huffman.Parse(treeData)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(dir, MasterIndexFile)
	f, err := os.Open(indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, indexerr.MissingArtifact(op, indexPath, err)
		}
		return nil, indexerr.IO(op, indexPath, err)
	}
	defer f.Close()

	infos, err := decodeMasterIndex(bufio.NewReader(f), tree)
	if err != nil {
		var ie *indexerr.Error
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = indexPath
		}
		return nil, err
	}
	return infos, nil
}

func decodeMasterIndex(r *bufio.Reader, tree *huffman.Tree) ([]Info, error) {
	const op = "read master index"
	corrupt := func(format string, args ...any) error {
		return indexerr.CorruptIndex(op, "", format, args...)
	}

	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, corrupt("missing header: %v", err)
	}
	if count < 0 {
		return nil, corrupt("negative record count %d", count)
	}

	readBytes := func(what string, i int) ([]byte, error) {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, corrupt("record %d: %s length: %v", i, what, err)
		}
		if n > math.MaxInt32 {
			return nil, corrupt("record %d: %s length %d", i, what, n)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, corrupt("record %d: %s: %v", i, what, err)
		}
		return b, nil
	}

	infos := make([]Info, 0, min(int(count), 1<<16))
	for i := 0; i < int(count); i++ {
		asm, err := binary.ReadUvarint(r)
		if err != nil || asm > math.MaxUint16 {
			return nil, corrupt("record %d: assembly number", i)
		}
		name, err := readBytes("name", i)
		if err != nil {
			return nil, err
		}
		var id uint64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, corrupt("record %d: id: %v", i, err)
		}
		desc, err := readBytes("description", i)
		if err != nil {
			return nil, err
		}
		glyph, err := binary.ReadUvarint(r)
		if err != nil || glyph > math.MaxUint16 {
			return nil, corrupt("record %d: glyph", i)
		}
		description, err := tree.Decompress(desc)
		if err != nil {
			return nil, err
		}
		infos = append(infos, Info{
			ID:             id,
			Name:           string(name),
			Description:    description,
			Glyph:          uint16(glyph),
			AssemblyNumber: uint16(asm),
		})
	}
	if _, err := r.ReadByte(); err == nil {
		return nil, corrupt("trailing data after %d records", count)
	}
	return infos, nil
}
