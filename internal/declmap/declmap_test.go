package declmap

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jward/xref/internal/indexerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIndex_DedupesAndSorts(t *testing.T) {
	t.Parallel()
	x := NewIndex()
	x.AddLocation("BBBB", "b.html", 40)
	x.AddLocation("AAAA", "z.html", 10)
	x.AddLocation("AAAA", "a.html", 90)
	x.AddLocation("AAAA", "a.html", 12)
	x.AddLocation("AAAA", "a.html", 12)

	assert.Equal(t, 2, x.Len())
	assert.Equal(t, []string{"AAAA", "BBBB"}, x.IDs())
	assert.Equal(t, []Location{
		{FilePath: "a.html", Offset: 12},
		{FilePath: "a.html", Offset: 90},
		{FilePath: "z.html", Offset: 10},
	}, x.Locations("AAAA"))
	assert.Empty(t, x.Locations("CCCC"))
}

func TestIndex_Merge(t *testing.T) {
	t.Parallel()
	a := NewIndex()
	a.AddLocation("AAAA", "a.html", 1)
	b := NewIndex()
	b.AddLocation("AAAA", "a.html", 1)
	b.AddLocation("AAAA", "b.html", 2)
	b.AddLocation("CCCC", "c.html", 3)

	a.Merge(b)
	assert.Equal(t, []Entry{
		{ID: "AAAA", Locations: []Location{{"a.html", 1}, {"b.html", 2}}},
		{ID: "CCCC", Locations: []Location{{"c.html", 3}}},
	}, a.Entries())
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	x := NewIndex()
	x.AddLocation("AAAA1111AAAA1111", "src/Foo.cs.html", 1234)
	x.AddLocation("AAAA1111AAAA1111", "src/Foo;Bar.cs.html", 0)
	x.AddLocation("0123456789ABCDEF", "a.html", 77)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, x))
	assert.Equal(t, "=0123456789ABCDEF\na.html;77\n=AAAA1111AAAA1111\nsrc/Foo.cs.html;1234\nsrc/Foo;Bar.cs.html;0\n", buf.String())

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, x.Entries(), got.Entries())
}

func TestParse_ToleratesBlankLinesAndCRLF(t *testing.T) {
	t.Parallel()
	got, err := Parse(strings.NewReader("=AAAA\r\na.html;5\r\n\r\n   \n=BBBB\nb.html;6\n"))
	require.NoError(t, err)
	assert.Equal(t, []Location{{"a.html", 5}}, got.Locations("AAAA"))
	assert.Equal(t, []Location{{"b.html", 6}}, got.Locations("BBBB"))
}

func TestParse_Corrupt(t *testing.T) {
	t.Parallel()
	for _, input := range []string{
		"a.html;5\n",
		"=AAAA\na.html\n",
		"=AAAA\na.html;x\n",
		"=AAAA\na.html;-4\n",
	} {
		_, err := Parse(strings.NewReader(input))
		assert.ErrorIs(t, err, indexerr.ErrCorruptIndex, input)
	}
}

func TestWrite_RejectsLineBreaks(t *testing.T) {
	t.Parallel()
	x := NewIndex()
	x.AddLocation("AAAA", "bad\npath", 1)
	err := Write(&bytes.Buffer{}, x)
	assert.ErrorIs(t, err, indexerr.ErrInconsistentReference)
}

func TestCodec_LeadingEqualsPath(t *testing.T) {
	t.Parallel()
	x := NewIndex()
	x.AddLocation("AAAA1111AAAA1111", "=gen.html", 7)
	err := Write(&bytes.Buffer{}, x)
	assert.ErrorIs(t, err, indexerr.ErrInconsistentReference)

	x = NewIndex()
	x.AddLocation("AAAA1111AAAA1111", "gen/=x.html", 7)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, x))
	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, []Location{{"gen/=x.html", 7}}, got.Locations("AAAA1111AAAA1111"))
}

func TestValidatePath(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidatePath("src/a=b.cs.html"))
	for _, bad := range []string{"=a.html", "a\nb", "a\rb"} {
		assert.ErrorIs(t, ValidatePath(bad), indexerr.ErrInconsistentReference, bad)
	}
}

func TestFile_RoundTripAndMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "A.txt")
	x := NewIndex()
	x.AddLocation("AAAA1111AAAA1111", "a.html", 10)
	require.NoError(t, WriteFile(path, x))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, x.Entries(), got.Entries())

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, indexerr.ErrMissingArtifact)
}

func TestRecorder_Concurrent(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				id := fmt.Sprintf("%016X", i%10)
				r.RecordDeclaration(id, fmt.Sprintf("f%d.html", w), int64(i))
				// Duplicate reports collapse in the index.
				r.RecordDeclaration(id, fmt.Sprintf("f%d.html", w), int64(i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
	x := r.Index()
	assert.Equal(t, 10, x.Len())
	total := 0
	for _, e := range x.Entries() {
		total += len(e.Locations)
	}
	assert.Equal(t, 800, total)
}
