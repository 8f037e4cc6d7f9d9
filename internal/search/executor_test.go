package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/psearch/internal/analysis"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/index"
	"github.com/Aman-CERP/psearch/internal/preset"
	"github.com/Aman-CERP/psearch/internal/query"
	"github.com/Aman-CERP/psearch/internal/store"
	"github.com/Aman-CERP/psearch/internal/walker"
)

// corpus is indexed in name order, so document ids are:
// 0 a.txt, 1 b.txt, 2 c.txt, 3 docs/d.md
var corpus = map[string]string{
	"a.txt":     "alpha beta gamma",
	"b.txt":     "alpha alpha beta",
	"c.txt":     "gamma delta",
	"docs/d.md": "the quick brown fox jumps over the lazy dog",
}

func buildIndex(t *testing.T, files map[string]string, analysisOpts analysis.Options) (root, indexPath string) {
	t.Helper()
	root = t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	ignore, err := walker.CompileIgnore(".psindex", walker.DefaultIgnoreFolders)
	require.NoError(t, err)
	indexPath = filepath.Join(root, ".psindex")
	_, err = index.Build(context.Background(), index.Options{
		Root:      root,
		IndexPath: indexPath,
		Ignore:    ignore,
		Analysis:  analysisOpts,
		Workers:   2,
	})
	require.NoError(t, err)
	return root, indexPath
}

func newTestExecutor(t *testing.T, files map[string]string, analysisOpts analysis.Options, opts Options) (*Executor, string) {
	t.Helper()
	root, indexPath := buildIndex(t, files, analysisOpts)
	r, err := store.Open(context.Background(), indexPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	exec, err := New(r, opts)
	require.NoError(t, err)
	return exec, root
}

// ids runs q without a limit and returns the matching ids in result order.
func ids(t *testing.T, exec *Executor, q string) []uint32 {
	t.Helper()
	res, err := exec.Search(context.Background(), q, 0)
	require.NoError(t, err, q)
	out := make([]uint32, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	return out
}

func sortedIDs(t *testing.T, exec *Executor, q string) []uint32 {
	t.Helper()
	out := ids(t, exec, q)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func scoreOf(t *testing.T, exec *Executor, q string, id uint32) float64 {
	t.Helper()
	res, err := exec.Search(context.Background(), q, 0)
	require.NoError(t, err)
	for _, h := range res.Hits {
		if h.ID == id {
			return h.Score
		}
	}
	t.Fatalf("document %d not found for %q", id, q)
	return 0
}

func TestExecute_Queries(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{})

	tests := []struct {
		name  string
		query string
		want  []uint32
	}{
		{"term", "alpha", []uint32{0, 1}},
		{"case sensitive", "Alpha", []uint32{}},
		{"implicit or", "alpha delta", []uint32{0, 1, 2}},
		{"and", "alpha AND gamma", []uint32{0}},
		{"and symbol", "beta && gamma", []uint32{0}},
		{"not", "NOT alpha", []uint32{2, 3}},
		{"and not", "alpha AND NOT gamma", []uint32{1}},
		{"minus excludes", "alpha -beta", []uint32{}},
		{"minus excludes from the union", "alpha delta -beta", []uint32{2}},
		{"not excludes", "gamma NOT delta", []uint32{0}},
		{"or not is a union", "delta OR -gamma", []uint32{1, 2, 3}},
		{"only negations", "-alpha -delta", []uint32{3}},
		{"group", "(alpha OR delta) AND gamma", []uint32{0, 2}},
		{"phrase", `"quick brown fox"`, []uint32{3}},
		{"phrase order", `"brown quick"`, []uint32{}},
		{"phrase keeps stop word gaps", `"fox jumps over the lazy"`, []uint32{3}},
		{"phrase needs the gap", `"fox jumps over lazy"`, []uint32{}},
		{"wildcard", "gam*", []uint32{0, 2}},
		{"single char wildcard", "?lpha", []uint32{0, 1}},
		{"exact path", "path:docs", []uint32{3}},
		{"exact filename", "filename:a.txt", []uint32{0}},
		{"exact filename phrase", `filename:"c.txt"`, []uint32{2}},
		{"exact is not tokenized", "filename:a", []uint32{}},
		{"filename wildcard", "filename:*.md", []uint32{3}},
		{"path wildcard", "path:do*", []uint32{3}},
		{"fielded group", "filename:(a.txt OR b.txt)", []uint32{0, 1}},
		{"multi token value is or-ed", "alpha/delta", []uint32{0, 1, 2}},
		{"escaped colon stays one token", `alpha\:beta`, []uint32{}},
		{"stop word dropped from or", "the OR delta", []uint32{2}},
		{"stop word dropped from and", "delta AND the", []uint32{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sortedIDs(t, exec, tt.query))
		})
	}
}

func TestExecute_VacuousQueryMatchesNothing(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{})

	for _, q := range []string{"the", "NOT the", `"the"`, "the AND a", "..."} {
		res, err := exec.Search(context.Background(), q, 0)
		require.NoError(t, err, q)
		assert.Empty(t, res.Hits, q)
		assert.Zero(t, res.Total, q)
	}
}

func TestExecute_SetAlgebra(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{})

	pairs := [][2]string{
		{"alpha", "gamma"},
		{"beta", "NOT alpha"},
		{"gam*", `"quick brown"`},
		{"path:docs", "fox"},
		{"delta", "alpha"},
	}
	for _, p := range pairs {
		a := toSet(sortedIDs(t, exec, p[0]))
		b := toSet(sortedIDs(t, exec, p[1]))

		and := sortedIDs(t, exec, "("+p[0]+") AND ("+p[1]+")")
		for _, id := range and {
			assert.True(t, a[id] && b[id], "%v AND %v returned %d", p[0], p[1], id)
		}
		assert.Len(t, and, countBoth(a, b))

		union := toSet(sortedIDs(t, exec, "("+p[0]+") OR ("+p[1]+")"))
		want := map[uint32]bool{}
		for id := range a {
			want[id] = true
		}
		for id := range b {
			want[id] = true
		}
		assert.Equal(t, want, union, "%v OR %v", p[0], p[1])
	}
}

func toSet(list []uint32) map[uint32]bool {
	set := make(map[uint32]bool, len(list))
	for _, id := range list {
		set[id] = true
	}
	return set
}

func countBoth(a, b map[uint32]bool) int {
	n := 0
	for id := range a {
		if b[id] {
			n++
		}
	}
	return n
}

func TestExecute_Ranking(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{})

	t.Run("term frequency raises the score", func(t *testing.T) {
		assert.Equal(t, []uint32{1, 0}, ids(t, exec, "alpha"))
	})

	t.Run("ties are broken by id", func(t *testing.T) {
		assert.Equal(t, []uint32{0, 2}, ids(t, exec, "gamma"))
	})

	t.Run("more matching terms never lower a score", func(t *testing.T) {
		one := scoreOf(t, exec, "alpha", 0)
		two := scoreOf(t, exec, "alpha OR beta", 0)
		three := scoreOf(t, exec, "alpha OR beta OR gamma", 0)
		assert.Greater(t, one, 0.0)
		assert.Greater(t, two, one)
		assert.Greater(t, three, two)
	})

	t.Run("negation adds no score", func(t *testing.T) {
		assert.Equal(t, scoreOf(t, exec, "alpha", 1), scoreOf(t, exec, "alpha AND NOT gamma", 1))
	})
}

func TestExecute_LimitAndTotal(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{})

	res, err := exec.Search(context.Background(), "alpha OR gamma", 1)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 3, res.Total)
	assert.True(t, res.Truncated())

	res, err = exec.Search(context.Background(), "alpha OR gamma", 3)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 3)
	assert.False(t, res.Truncated())
}

func TestExecute_HitPaths(t *testing.T) {
	// Given: the corpus from the reporting scenario
	exec, root := newTestExecutor(t, map[string]string{
		"test1.txt":     "the quick fox",
		"sub/test2.txt": "Lorem ipsum",
	}, analysis.Options{}, Options{})

	// When: searching for both documents
	res, err := exec.Search(context.Background(), "fox OR Lorem", 0)
	require.NoError(t, err)

	// Then: hits carry stored and absolute paths
	require.Len(t, res.Hits, 2)
	byName := map[string]Hit{}
	for _, h := range res.Hits {
		byName[h.Filename] = h
	}
	assert.Equal(t, "", byName["test1.txt"].Path)
	assert.Equal(t, filepath.Join(root, "test1.txt"), byName["test1.txt"].AbsPath)
	assert.Equal(t, "sub", byName["test2.txt"].Path)
	assert.Equal(t, filepath.Join(root, "sub", "test2.txt"), byName["test2.txt"].AbsPath)
}

func TestExecute_RootOverride(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{Root: "/elsewhere"})

	res, err := exec.Search(context.Background(), "path:docs", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, filepath.Join("/elsewhere", "docs", "d.md"), res.Hits[0].AbsPath)
}

func TestExecute_CaseInsensitiveGeneration(t *testing.T) {
	exec, _ := newTestExecutor(t, map[string]string{
		"a.txt": "Alpha BETA",
		"b.txt": "The end",
	}, analysis.Options{CaseInsensitive: true}, Options{})

	assert.Equal(t, []uint32{0}, sortedIDs(t, exec, "ALPHA"))
	assert.Equal(t, []uint32{0}, sortedIDs(t, exec, "beta"))
	assert.Equal(t, []uint32{0}, sortedIDs(t, exec, "ALP*"))
	// "The" is lowercased before stop filtering
	assert.Equal(t, []uint32{}, sortedIDs(t, exec, "The"))
	assert.Equal(t, []uint32{1}, sortedIDs(t, exec, "END"))
}

func TestExecute_WideWildcardUsesConstantScore(t *testing.T) {
	// Given an executor that scores at most two wildcard terms
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{MaxExpansions: 2})

	// When a narrow wildcard is searched
	// Then it is scored per term
	assert.Equal(t, []uint32{0, 2}, sortedIDs(t, exec, "gam*"))

	// When a wildcard expands to every term
	res, err := exec.Search(context.Background(), "*", 0)

	// Then every document matches with the same score
	require.NoError(t, err)
	require.Len(t, res.Hits, 4)
	for _, h := range res.Hits {
		assert.Equal(t, res.Hits[0].Score, h.Score)
		assert.Greater(t, h.Score, 0.0)
	}
	assert.Equal(t, []uint32{0, 1, 2, 3}, []uint32{res.Hits[0].ID, res.Hits[1].ID, res.Hits[2].ID, res.Hits[3].ID})
}

func TestExecute_WildcardOverManyTerms(t *testing.T) {
	// Given one file with more distinct terms than DefaultMaxExpansions
	var sb strings.Builder
	for i := 0; i < DefaultMaxExpansions+100; i++ {
		fmt.Fprintf(&sb, "t%d ", i)
	}
	exec, _ := newTestExecutor(t, map[string]string{
		"many.txt":  sb.String(),
		"other.txt": "unrelated",
	}, analysis.Options{}, Options{})

	// When a prefix matching all of them is searched
	// Then the query succeeds and finds the file
	assert.Equal(t, []uint32{0}, sortedIDs(t, exec, "t*"))
}

func TestExecute_TestPreset(t *testing.T) {
	// Given: the test preset is active over a small corpus
	exec, _ := newTestExecutor(t, map[string]string{
		"test1.txt": "The quick @brown fox ends at end:text",
		"test2.txt": "Lorem ipsum dolor sit amet",
		"test3.txt": "brown paper",
	}, analysis.Options{}, Options{})
	resolver, err := preset.NewResolver(preset.TestPresets(func(key string) (string, bool) {
		return "true", key == preset.TestPresetsEnv
	}))
	require.NoError(t, err)

	// When: preset:test is expanded and executed
	q, err := resolver.Expand(preset.Prefix + "test")
	require.NoError(t, err)
	res, err := exec.Search(context.Background(), q, 0)

	// Then: both test files match and the brown-only file does not
	require.NoError(t, err)
	var names []string
	for _, h := range res.Hits {
		names = append(names, h.Filename)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"test1.txt", "test2.txt"}, names)
}

func TestExecute_Errors(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{})
	ctx := context.Background()

	t.Run("syntax error", func(t *testing.T) {
		_, err := exec.Search(ctx, "(alpha", 0)
		assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeQuerySyntax))
	})

	t.Run("unknown field in a built tree", func(t *testing.T) {
		_, err := exec.Execute(ctx, &query.Term{Field: "size", Value: "1"}, 0)
		assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeInvalidField))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := exec.Search(cctx, "alpha", 0)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed reader", func(t *testing.T) {
		_, indexPath := buildIndex(t, corpus, analysis.Options{})
		r, err := store.Open(ctx, indexPath)
		require.NoError(t, err)
		closed, err := New(r, Options{})
		require.NoError(t, err)
		require.NoError(t, r.Close())

		_, err = closed.Search(ctx, "alpha", 0)
		assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeIndexRead))
	})
}

func TestExecute_ConcurrentQueries(t *testing.T) {
	exec, _ := newTestExecutor(t, corpus, analysis.Options{}, Options{CacheSize: 2})

	queries := []string{"alpha", "gamma AND NOT delta", `"quick brown"`, "gam*", "path:docs"}
	want := make([][]uint32, len(queries))
	for i, q := range queries {
		want[i] = ids(t, exec, q)
	}

	var g errgroup.Group
	for n := 0; n < 8; n++ {
		for i, q := range queries {
			g.Go(func() error {
				res, err := exec.Search(context.Background(), q, 0)
				if err != nil {
					return err
				}
				got := make([]uint32, 0, len(res.Hits))
				for _, h := range res.Hits {
					got = append(got, h.ID)
				}
				assert.Equal(t, want[i], got, q)
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
}

func TestPostingCache(t *testing.T) {
	_, indexPath := buildIndex(t, corpus, analysis.Options{})
	ctx := context.Background()
	r, err := store.Open(ctx, indexPath)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	cache, err := newPostingCache(r, 1)
	require.NoError(t, err)

	first, err := cache.get(ctx, store.FieldContents, "alpha")
	require.NoError(t, err)
	again, err := cache.get(ctx, store.FieldContents, "alpha")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.get(ctx, store.FieldContents, "gamma")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}
