package indexerr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIs_MatchesKindSentinel(t *testing.T) {
	t.Parallel()
	err := CorruptIndex("read tree", "/out/Huffman.txt", "truncated leaf at byte %d", 7)

	assert.ErrorIs(t, err, ErrCorruptIndex)
	assert.NotErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, KindCorruptIndex, KindOf(err))
	assert.Contains(t, err.Error(), "read tree: corrupt_index /out/Huffman.txt: truncated leaf at byte 7")
}

func TestIs_SurvivesWrapping(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("finalize: %w", InconsistentReference("merge", "span [4,2) is empty"))
	assert.ErrorIs(t, err, ErrInconsistentReference)
	assert.Equal(t, KindInconsistentReference, KindOf(err))
}

func TestIO_KeepsClassifiedErrors(t *testing.T) {
	t.Parallel()
	assert.NoError(t, IO("write", "x", nil))

	missing := MissingArtifact("patch", "a.html", os.ErrNotExist)
	assert.Same(t, missing, IO("patch", "a.html", missing))

	plain := IO("write", "x", errors.New("disk full"))
	require.Error(t, plain)
	assert.ErrorIs(t, plain, ErrIOFailure)
}

func TestMissingArtifact_UnwrapsCause(t *testing.T) {
	t.Parallel()
	err := MissingArtifact("patch", "a.html", os.ErrNotExist)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, err, ErrMissingArtifact)
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
