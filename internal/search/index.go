// Package search is the knowledge base behind advisory requests. Playbook
// paragraphs are loaded from Markdown or text files and ranked against a
// prompt by Jaccard similarity of their token sets:
//
//	score = |Q ∩ P| / |Q ∪ P|
//
// An index is read-only after construction and safe for concurrent use. The
// package does not log; callers decide what to report.
package search

import (
	"bytes"
	"cmp"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Result is a ranked snippet with its similarity score. Source is the path of
// the file the snippet came from, relative to the loaded directory, or empty.
type Result struct {
	Snippet string
	Source  string
	Score   float64
}

// Index ranks stored snippets against a query.
type Index interface {
	TopK(query string, k int) []Result
}

// Option tunes index construction.
type Option func(*config)

type config struct {
	minParagraphRunes int
	stopwords         map[string]struct{}
	maxDocs           int
}

func defaultConfig() config {
	return config{minParagraphRunes: 40}
}

// WithMinParagraphRunes drops paragraphs shorter than n runes. Negative values
// are ignored.
func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

// WithStopwords removes the given words from both queries and paragraphs.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the number of indexed paragraphs. Non-positive values are
// ignored.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

type paragraph struct {
	text   string
	source string
}

type doc struct {
	paragraph
	tokens map[string]struct{}
	runes  int
}

type index struct {
	cfg  config
	docs []doc
}

// knowledgeExts are the file extensions NewIndexFromDir loads.
var knowledgeExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// NewIndexFromDir indexes every Markdown and text file under dir, in lexical
// path order. Markdown tables are flattened to one fact per row first.
func NewIndexFromDir(dir string, opts ...Option) (Index, error) {
	cfg := newConfig(opts)
	var paras []paragraph
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !knowledgeExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		body, err := PrepareMarkdownFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		for _, p := range splitParagraphs(body) {
			paras = append(paras, paragraph{text: p, source: filepath.ToSlash(rel)})
		}
		return nil
	})
	if err != nil {
		return &index{cfg: cfg}, err
	}
	return buildIndex(paras, cfg), nil
}

// NewIndexFromFile indexes a single file.
func NewIndexFromFile(path string, opts ...Option) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return &index{cfg: newConfig(opts)}, err
	}
	return NewIndexFromReader(bytes.NewReader(b), opts...)
}

// NewIndexFromReader indexes UTF-8 text from r, split on blank lines.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	cfg := newConfig(opts)
	all, err := io.ReadAll(r)
	if err != nil {
		return &index{cfg: cfg}, err
	}
	return buildIndex(toParagraphs(splitParagraphs(all)), cfg), nil
}

// NewIndexFromStrings indexes the given paragraphs as-is.
func NewIndexFromStrings(paragraphs []string, opts ...Option) Index {
	return buildIndex(toParagraphs(paragraphs), newConfig(opts))
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func toParagraphs(texts []string) []paragraph {
	out := make([]paragraph, len(texts))
	for i, t := range texts {
		out[i] = paragraph{text: t}
	}
	return out
}

func buildIndex(paras []paragraph, cfg config) *index {
	docs := make([]doc, 0, len(paras))
	for _, p := range paras {
		p.text = strings.TrimSpace(collapseSpaces(p.text))
		if p.text == "" {
			continue
		}
		n := utf8.RuneCountInString(p.text)
		if n < cfg.minParagraphRunes {
			continue
		}
		toks := tokenize(p.text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{paragraph: p, tokens: toks, runes: n})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// TopK returns up to k paragraphs sharing at least one token with q, best
// first. Ties go to the shorter paragraph, then lexical order. k <= 0 means 3.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qt := tokenize(q, i.cfg.stopwords)
	if len(qt) == 0 {
		return nil
	}

	type hit struct {
		d     *doc
		score float64
	}
	var hits []hit
	for n := range i.docs {
		d := &i.docs[n]
		shared := overlap(qt, d.tokens)
		if shared == 0 {
			continue
		}
		union := len(qt) + len(d.tokens) - shared
		if union <= 0 {
			continue
		}
		hits = append(hits, hit{d: d, score: float64(shared) / float64(union)})
	}
	if len(hits) == 0 {
		return nil
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.d.runes, b.d.runes); c != 0 {
			return c
		}
		return strings.Compare(a.d.text, b.d.text)
	})

	out := make([]Result, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, Result{Snippet: h.d.text, Source: h.d.source, Score: h.score})
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// collapseSpaces folds runs of spaces, tabs and carriage returns into one
// space. Newlines are kept.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !prev {
				b.WriteByte(' ')
			}
			prev = true
			continue
		}
		prev = false
		b.WriteRune(r)
	}
	return b.String()
}

var paraSplitRE = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(all []byte) []string {
	chunks := paraSplitRE.Split(string(all), -1)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c); t != "" {
			out = append(out, t)
		}
	}
	return out
}
