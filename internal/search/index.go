// Package search ranks a user's conversation turns against a free-text query.
// The index is built per request from the turns already loaded by the caller,
// is immutable after construction and safe for concurrent use.
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|. Tokenization is
// Unicode-aware and folds the Arabic and Persian spellings of yeh and kaf
// together, so queries typed on either keyboard layout match.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Doc is one searchable text with a caller-chosen identifier.
type Doc struct {
	ID   string
	Text string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID      string
	Snippet string
	Score   float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minRunes   int
	stopwords  map[string]struct{}
	maxDocs    int
	snippetLen int
}

func defaultConfig() config {
	return config{
		stopwords:  toSet(PersianStopwords),
		snippetLen: 280,
	}
}

// WithMinRunes skips documents shorter than n runes.
func WithMinRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minRunes = n
		}
	}
}

// WithStopwords replaces the default Persian stop-word list. An empty list
// disables stop-word removal.
func WithStopwords(words []string) Option {
	return func(c *config) { c.stopwords = toSet(words) }
}

// WithMaxDocs caps the number of indexed documents (first n kept).
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithSnippetRunes truncates returned snippets to n runes (0 keeps them whole).
func WithSnippetRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.snippetLen = n
		}
	}
}

// PersianStopwords are high-frequency function words that carry no topic.
var PersianStopwords = []string{
	"و", "در", "به", "از", "که", "این", "آن", "را", "با", "است", "برای",
	"هم", "یا", "تا", "من", "تو", "ما", "شما", "او", "یک", "هست", "بود",
	"می", "نمی", "چه", "چی", "اگر", "پس", "اما", "ولی", "هر", "کن", "کنم",
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	text   string
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs in the given order. Ties in score keep
// the later document first, so recent turns win among equals.
func NewIndex(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		t := strings.TrimSpace(normalizeWhitespace(d.Text))
		if t == "" {
			continue
		}
		if cfg.minRunes > 0 && utf8.RuneCountInString(t) < cfg.minRunes {
			continue
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, text: t, tokens: toks})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

// TopK returns up to k best-matching documents by Jaccard similarity.
// k <= 0 defaults to 5.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		pos   int
		score float64
	}
	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for pos, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		buf = append(buf, scored{pos: pos, score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		return buf[a].pos > buf[b].pos
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		d := i.docs[buf[n].pos]
		out[n] = Result{ID: d.id, Snippet: clip(d.text, i.cfg.snippetLen), Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var (
	wordRE = regexp.MustCompile(`[\p{L}\p{M}]+\p{N}*|\p{N}+`)
	folder = cases.Fold()

	// Arabic code points commonly typed in place of their Persian forms.
	persianFold = strings.NewReplacer(
		"ي", "ی", "ى", "ی", "ك", "ک", "ة", "ه", "ۀ", "ه",
		"أ", "ا", "إ", "ا", "ٱ", "ا",
		"\u200c", "", // zero-width non-joiner inside compound words
		"\u0640", "", // tatweel
	)
)

// Tokenize exposes the analyzer so callers can highlight or debug matches.
func Tokenize(s string) []string {
	set := tokenize(s, nil)
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = persianFold.Replace(folder.String(norm.NFC.String(s)))
	words := wordRE.FindAllString(s, -1)
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

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			m[w] = struct{}{}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
