package search

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 40, cfg.minParagraphRunes)
	assert.Nil(t, cfg.stopwords)

	WithMinParagraphRunes(10)(&cfg)
	WithMinParagraphRunes(-1)(&cfg)
	assert.Equal(t, 10, cfg.minParagraphRunes)

	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	assert.Contains(t, cfg.stopwords, "the")
	assert.Contains(t, cfg.stopwords, "an")

	empty := defaultConfig()
	WithStopwords(nil)(&empty)
	assert.Nil(t, empty.stopwords)

	WithMaxDocs(2)(&cfg)
	WithMaxDocs(0)(&cfg)
	assert.Equal(t, 2, cfg.maxDocs)
}

func TestNewIndexFromDir_LoadsKnowledgeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "retention.md", "# Retention\n\nCall clients who have not purchased in 90 days with a personal offer.\n")
	writeFile(t, dir, "pricing/tiers.md", "| Tier | Discount |\n| --- | --- |\n| Gold clients | 15 percent discount |\n")
	writeFile(t, dir, "notes.txt", "Restock best sellers before the weekend rush.")
	writeFile(t, dir, "ignored.json", `{"clients": "ignored"}`)

	idx, err := NewIndexFromDir(dir, WithMinParagraphRunes(0))
	require.NoError(t, err)

	res := idx.TopK("offer for clients who have not purchased", 1)
	require.Len(t, res, 1)
	assert.Equal(t, "retention.md", res[0].Source)
	assert.Contains(t, res[0].Snippet, "personal offer")

	res = idx.TopK("gold discount", 1)
	require.Len(t, res, 1)
	assert.Equal(t, "pricing/tiers.md", res[0].Source)
	assert.Equal(t, "Gold clients 15 percent discount", res[0].Snippet)

	assert.Empty(t, idx.TopK("ignored", 3))
}

func TestNewIndexFromDir_MissingDir(t *testing.T) {
	idx, err := NewIndexFromDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Empty(t, idx.TopK("anything", 3))
}

func TestNewIndexFromFileAndReader(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "doc.md", "Alpha beta gamma.\n\nDelta epsilon zeta.")

	idx, err := NewIndexFromFile(p, WithMinParagraphRunes(0))
	require.NoError(t, err)
	assert.Len(t, idx.TopK("alpha zeta", 5), 2)

	_, err = NewIndexFromFile(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)

	_, err = NewIndexFromReader(failingReader{})
	assert.Error(t, err)

	idx, err = NewIndexFromReader(bytes.NewBufferString("Para one.\n\nPara two two."), WithMinParagraphRunes(0))
	require.NoError(t, err)
	res := idx.TopK("two", 3)
	require.Len(t, res, 1)
	assert.Equal(t, "Para two two.", res[0].Snippet)
	assert.Empty(t, res[0].Source)
}

func TestBuildIndex_FiltersAndMaxDocs(t *testing.T) {
	paras := []string{
		"",
		" \t \r  ",
		"short",
		"The and a",
		"Keep This Paragraph",
		"Another paragraph here with words",
	}
	idx := NewIndexFromStrings(paras, WithMinParagraphRunes(6), WithStopwords([]string{"the", "and", "a"}))
	assert.Len(t, idx.(*index).docs, 2)

	capped := NewIndexFromStrings(paras, WithMinParagraphRunes(0), WithMaxDocs(1))
	assert.Len(t, capped.(*index).docs, 1)
}

func TestTopK_OrderingAndEdges(t *testing.T) {
	idx := NewIndexFromStrings([]string{
		"loyal clients buy often",
		"loyal clients",
		"clients",
		"unrelated text about stock",
	}, WithMinParagraphRunes(0))

	assert.Nil(t, idx.TopK("", 3))
	assert.Nil(t, idx.TopK("!!!", 3))
	assert.Nil(t, idx.TopK("nothing matches", 3))

	res := idx.TopK("loyal clients", 0)
	require.Len(t, res, 3)
	assert.Equal(t, "loyal clients", res[0].Snippet)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	// "clients" and "loyal clients buy often" both score 0.5; the shorter wins.
	assert.Equal(t, "clients", res[1].Snippet)
	assert.Equal(t, "loyal clients buy often", res[2].Snippet)

	assert.Len(t, idx.TopK("clients", 10), 3)
	assert.Nil(t, NewIndexFromStrings(nil).TopK("clients", 3))
}

func TestHelpers(t *testing.T) {
	toks := tokenize("Hello, WORLD world x1", map[string]struct{}{"hello": {}})
	assert.Equal(t, map[string]struct{}{"world": {}, "x1": {}}, toks)
	assert.Nil(t, tokenize("123 !!", nil))

	assert.Equal(t, 1, overlap(map[string]struct{}{"a": {}, "b": {}, "c": {}}, map[string]struct{}{"c": {}}))
	assert.Equal(t, 0, overlap(nil, map[string]struct{}{"a": {}}))

	assert.Equal(t, "a b\nc", collapseSpaces("a \t\r b\nc"))
	assert.Equal(t, []string{"one", "two\nlines"}, splitParagraphs([]byte("\n one \n\n  \n two\nlines \n")))
}
