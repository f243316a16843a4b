package redirect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jward/xref/internal/declmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, entries map[string][]string) *declmap.Index {
	t.Helper()
	x := declmap.NewIndex()
	for id, paths := range entries {
		for i, p := range paths {
			x.AddLocation(id, p, int64(100+i))
		}
	}
	return x
}

func TestBuild_DirectAndDisambiguation(t *testing.T) {
	t.Parallel()
	x := buildIndex(t, map[string][]string{
		"AAAA1111AAAA1111": {"src/Foo.cs.html"},
		"BBBB2222BBBB2222": {"src/Partial.Designer.cs.html", `src\Partial.cs.html`, "gen/partial.g.cs.html"},
	})
	res, err := Build(x, DefaultOptions())
	require.NoError(t, err)

	target, ok := res.Resolve("AAAA1111AAAA1111")
	require.True(t, ok)
	assert.Equal(t, Target{File: "src/Foo.cs.html"}, target)

	target, ok = res.Resolve("BBBB2222BBBB2222")
	require.True(t, ok)
	assert.Equal(t, "partial/BBBB2222.html", target.Partial)
	assert.Empty(t, target.File)

	p, ok := res.Partial("BBBB2222")
	require.True(t, ok)
	require.Len(t, p.Candidates, 3)
	assert.Equal(t, []Candidate{
		{ID: "BBBB2222BBBB2222", Path: "gen/partial.g.cs.html"},
		{ID: "BBBB2222BBBB2222", Path: "src/Partial.cs.html"},
		{ID: "BBBB2222BBBB2222", Path: "src/Partial.Designer.cs.html"},
	}, p.Candidates)

	_, ok = res.Resolve("CCCC3333CCCC3333")
	assert.False(t, ok)
	_, ok = res.Resolve("AAAA9999AAAA1111")
	assert.False(t, ok)
}

func TestBuild_SeveralOffsetsInOneFileResolveDirectly(t *testing.T) {
	t.Parallel()
	x := declmap.NewIndex()
	x.AddLocation("AAAA1111AAAA1111", "src/Foo.cs.html", 10)
	x.AddLocation("AAAA1111AAAA1111", "src/Foo.cs.html", 250)
	x.AddLocation("AAAA1111AAAA1111", `src\Foo.cs.html`, 400)
	res, err := Build(x, DefaultOptions())
	require.NoError(t, err)

	target, ok := res.Resolve("AAAA1111AAAA1111")
	require.True(t, ok)
	assert.Equal(t, Target{File: "src/Foo.cs.html"}, target)
	_, ok = res.Partial("AAAA1111")
	assert.False(t, ok)
}

func TestBuild_ShardsByFirstCharacter(t *testing.T) {
	t.Parallel()
	x := buildIndex(t, map[string][]string{
		"0000000000000001": {"a.html"},
		"0FFF000000000001": {"b.html"},
		"A000000000000001": {"c.html"},
	})
	res, err := Build(x, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, "0", res.Tables[0].Prefix)
	assert.Equal(t, "A", res.Tables[1].Prefix)
	assert.Equal(t, "a0.html", res.Tables[0].FileName())

	// Keys drop the consumed shard character and keep the rest of the
	// significant prefix.
	assert.Equal(t, []Entry{{Key: "0000000", File: 0}, {Key: "FFF0000", File: 1}}, res.Tables[0].Entries)
}

func TestBuild_TruncationCollisionUsesDisambiguation(t *testing.T) {
	t.Parallel()
	x := buildIndex(t, map[string][]string{
		"DEADBEEF00000001": {"one.html"},
		"DEADBEEF00000002": {"two.html"},
	})
	res, err := Build(x, DefaultOptions())
	require.NoError(t, err)

	for _, id := range []string{"DEADBEEF00000001", "DEADBEEF00000002"} {
		target, ok := res.Resolve(id)
		require.True(t, ok)
		assert.Equal(t, "partial/DEADBEEF.html", target.Partial, id)
	}
	p, ok := res.Partial("DEADBEEF")
	require.True(t, ok)
	assert.Equal(t, []Candidate{
		{ID: "DEADBEEF00000001", Path: "one.html"},
		{ID: "DEADBEEF00000002", Path: "two.html"},
	}, p.Candidates)

	// A longer significant length separates them again.
	opts := DefaultOptions()
	opts.SignificantIDLength = 16
	res, err = Build(x, opts)
	require.NoError(t, err)
	target, ok := res.Resolve("DEADBEEF00000002")
	require.True(t, ok)
	assert.Equal(t, Target{File: "two.html"}, target)
	assert.Empty(t, res.Partials)
}

func TestBuild_SplitsLargeShards(t *testing.T) {
	t.Parallel()
	entries := make(map[string][]string)
	for i := range 64 {
		id := fmt.Sprintf("A%015X", uint64(i)<<52)
		entries[id] = []string{fmt.Sprintf("f%02d.html", i)}
	}
	entries["B000000000000000"] = []string{"b.html"}
	x := buildIndex(t, entries)

	opts := DefaultOptions()
	opts.MaxTableEntries = 8
	res, err := Build(x, opts)
	require.NoError(t, err)

	for _, tbl := range res.Tables {
		assert.LessOrEqual(t, len(tbl.Entries), 8, tbl.Prefix)
	}
	assert.Greater(t, len(res.Tables), 2)
	for id, paths := range entries {
		target, ok := res.Resolve(id)
		require.True(t, ok, id)
		assert.Equal(t, paths[0], target.File, id)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	entries := map[string][]string{}
	for i := range 50 {
		entries[fmt.Sprintf("%016X", uint64(i)*0x0123456789ABCDE)] = []string{fmt.Sprintf("f%d.html", i%7)}
	}
	a, err := Build(buildIndex(t, entries), DefaultOptions())
	require.NoError(t, err)
	b, err := Build(buildIndex(t, entries), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{SignificantIDLength: 1, MaxTableEntries: 10}.Validate())
	assert.Error(t, Options{SignificantIDLength: 17, MaxTableEntries: 10}.Validate())
	assert.Error(t, Options{SignificantIDLength: 8, MaxTableEntries: 0}.Validate())

	_, err := Build(declmap.NewIndex(), Options{})
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	x := buildIndex(t, map[string][]string{
		"AAAA1111AAAA1111": {"src/Foo.cs.html"},
		"ABCD0000AAAA1111": {"src/A.cs.html", "src/B.cs.html", "src/C.cs.html"},
	})
	res, err := Build(x, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, res.Write(dir))

	root, err := os.ReadFile(filepath.Join(dir, RootFile))
	require.NoError(t, err)
	assert.Contains(t, string(root), `var shards = ["A"];`)
	assert.Contains(t, string(root), "redirectToNextLevelRedirectFile(shards, 8);")

	table, err := os.ReadFile(filepath.Join(dir, "aA.html"))
	require.NoError(t, err)
	s := string(table)
	assert.Contains(t, s, "\"src/Foo.cs.html\",\n")
	assert.Contains(t, s, `m["AAA1111"]=f[3];`)
	assert.Contains(t, s, `m["BCD0000"]="partial/ABCD0000.html";`)
	assert.Contains(t, s, "redirect(m, 8);")

	partial, err := os.ReadFile(filepath.Join(dir, "partial", "ABCD0000.html"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(partial), "<a href="))
	assert.Contains(t, string(partial), `<a href="../src/A.cs.html#ABCD0000AAAA1111">src/A.cs.html</a>`)
	assert.Less(t, strings.Index(string(partial), "src/A.cs"), strings.Index(string(partial), "src/C.cs"))
}
