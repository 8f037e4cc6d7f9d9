package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

func positions(ps ...uint32) *roaring.Bitmap {
	return roaring.BitmapOf(ps...)
}

func sampleDocs() []*Document {
	return []*Document{
		{
			ID: 0, Path: "", Filename: "test1.txt", Length: 3,
			Terms: map[string]*roaring.Bitmap{"quick": positions(2), "fox": positions(3, 7)},
		},
		{
			ID: 1, Path: "docs", Filename: "test2.txt", Length: 2,
			Terms: map[string]*roaring.Bitmap{"Lorem": positions(1), "ipsum": positions(2)},
		},
		{
			ID: 2, Path: "docs/empty", Filename: "empty.txt", Length: 0,
			Terms: map[string]*roaring.Bitmap{},
		},
	}
}

func buildIndex(t *testing.T, dir string, docs []*Document) Meta {
	t.Helper()
	ctx := context.Background()
	w, err := NewWriter(ctx, dir, WriterOptions{Root: "/corpus", MaxTokenLength: 255})
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, w.Add(ctx, d))
	}
	meta, err := w.Commit(ctx)
	require.NoError(t, err)
	return meta
}

func TestWriterReader_RoundTrip(t *testing.T) {
	// Given: a committed generation
	dir := filepath.Join(t.TempDir(), ".psindex")
	meta := buildIndex(t, dir, sampleDocs())
	require.True(t, Exists(dir))

	// When: opening it for reading
	ctx := context.Background()
	r, err := Open(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// Then: metadata and stored fields are available
	assert.Equal(t, meta.Generation, r.Meta().Generation)
	assert.Equal(t, 3, r.Meta().DocCount)
	assert.Equal(t, 255, r.Meta().MaxTokenLength)
	assert.Equal(t, "/corpus", r.Meta().Root)
	assert.Equal(t, 3, r.DocCount())
	assert.Equal(t, []uint32{0, 1, 2}, r.All().ToArray())

	doc, err := r.Document(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StoredDocument{ID: 1, Path: "docs", Filename: "test2.txt", Length: 2}, doc)

	// And: content postings carry frequencies and positions
	fox, err := r.Postings(ctx, FieldContents, "fox")
	require.NoError(t, err)
	require.Len(t, fox, 1)
	assert.Equal(t, uint32(0), fox[0].Doc)
	assert.Equal(t, 2, fox[0].Freq)
	assert.Equal(t, []uint32{3, 7}, fox[0].Positions.ToArray())

	// And: exact fields are searchable by their literal value
	byName, err := r.Postings(ctx, FieldFilename, "empty.txt")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, uint32(2), byName[0].Doc)
	assert.Nil(t, byName[0].Positions)

	byPath, err := r.Postings(ctx, FieldPath, "docs")
	require.NoError(t, err)
	require.Len(t, byPath, 1)
	assert.Equal(t, uint32(1), byPath[0].Doc)
}

func TestReader_Postings_CaseSensitive(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, sampleDocs())
	r, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	upper, err := r.Postings(context.Background(), FieldContents, "Lorem")
	require.NoError(t, err)
	assert.Len(t, upper, 1)

	lower, err := r.Postings(context.Background(), FieldContents, "lorem")
	require.NoError(t, err)
	assert.Empty(t, lower)
}

func TestReader_Terms_Prefix(t *testing.T) {
	dir := t.TempDir()
	docs := []*Document{{
		ID: 0, Path: "", Filename: "f.txt",
		Terms: map[string]*roaring.Bitmap{
			"test":    positions(1),
			"testing": positions(2),
			"tester":  positions(3),
			"Test":    positions(4),
			"te*st":   positions(5),
			"other":   positions(6),
		},
	}}
	buildIndex(t, dir, docs)
	r, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	terms, err := r.Terms(context.Background(), FieldContents, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "tester", "testing"}, terms)

	// glob metacharacters in the prefix are literal
	terms, err = r.Terms(context.Background(), FieldContents, "te*")
	require.NoError(t, err)
	assert.Equal(t, []string{"te*st"}, terms)

	terms, err = r.Terms(context.Background(), FieldFilename, "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"f.txt"}, terms)

	n, err := r.TermCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, n) // 6 contents + path "" + filename
}

func TestWriter_RewriteReplacesGeneration(t *testing.T) {
	dir := t.TempDir()
	first := buildIndex(t, dir, sampleDocs())
	second := buildIndex(t, dir, sampleDocs()[:1])

	r, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, second.Generation, r.Meta().Generation)
	assert.Equal(t, 1, r.DocCount())
}

func TestWriter_CloseWithoutCommitKeepsPreviousGeneration(t *testing.T) {
	// Given: a committed generation
	dir := t.TempDir()
	first := buildIndex(t, dir, sampleDocs())

	// When: a second session adds documents but fails before commit
	ctx := context.Background()
	w, err := NewWriter(ctx, dir, WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Add(ctx, sampleDocs()[0]))
	assert.Equal(t, 1, w.DocCount())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "Close is idempotent")

	// Then: readers still see the first generation
	r, err := Open(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	assert.Equal(t, first.Generation, r.Meta().Generation)
	assert.Equal(t, 3, r.DocCount())
}

func TestWriter_RejectsConcurrentWriter(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	w, err := NewWriter(ctx, dir, WriterOptions{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = NewWriter(ctx, dir, WriterOptions{})
	require.Error(t, err)
	assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeIndexLocked))
}

func TestWriter_AddAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	w, err := NewWriter(ctx, dir, WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.Add(ctx, sampleDocs()[0])
	assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeIO))
}

func TestOpen_MissingIndex(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nothing"))
	require.Error(t, err)
	assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeIndexMissing))
}

func TestOpen_UncommittedIndex(t *testing.T) {
	// Given: a session that never committed, leaving an empty schema behind
	dir := t.TempDir()
	w, err := NewWriter(context.Background(), dir, WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.FileExists(t, DatabasePath(dir))

	// When: the folder is checked and opened
	_, err = Open(context.Background(), dir)

	// Then: it counts as having no index
	assert.False(t, Exists(dir))
	require.Error(t, err)
	assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeIndexMissing))
}

func TestExists_NotADatabase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(DatabasePath(dir), []byte("not sqlite"), 0o644))
	assert.False(t, Exists(dir))
}

func TestReader_ClosedReaderFails(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, sampleDocs())
	r, err := Open(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Postings(context.Background(), FieldContents, "fox")
	assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeIndexRead))
}

func TestRemove_DeletesNestedFolders(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b", "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "c", "f"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "g"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-sibling"), []byte("z"), 0o644))

	require.NoError(t, Remove(dir))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	// missing folder is fine
	require.NoError(t, Remove(dir))
}

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseField("author")
	require.Error(t, err)
	assert.True(t, pserrors.HasCode(err, pserrors.ErrCodeInvalidField))

	assert.True(t, FieldContents.Tokenized())
	assert.False(t, FieldPath.Tokenized())
	assert.False(t, FieldFilename.Tokenized())
}

func TestPositionsCodec(t *testing.T) {
	data, err := encodePositions(positions(1, 5, 9))
	require.NoError(t, err)

	decoded, err := decodePositions(data)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 5, 9}, decoded.ToArray())

	none, err := encodePositions(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	empty, err := decodePositions(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
