package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gobwas/glob"

	"github.com/Aman-CERP/psearch/internal/analysis"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/query"
	"github.com/Aman-CERP/psearch/internal/store"
)

// match is the evaluation of one node: the matching documents and their
// accumulated scores. A vacuous match comes from a clause that analyzed to no
// terms at all; enclosing AND/OR clauses ignore it.
type match struct {
	docs    *roaring.Bitmap
	scores  map[uint32]float64
	vacuous bool
}

func newMatch() *match {
	return &match{docs: roaring.New(), scores: make(map[uint32]float64)}
}

func vacuous() *match {
	return &match{docs: roaring.New(), vacuous: true}
}

type evaluator struct {
	exec     *Executor
	ctx      context.Context
	docCount int
}

func (ev *evaluator) eval(node query.Node) (*match, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *query.Term:
		return ev.term(n.Field, n.Value)
	case *query.Phrase:
		return ev.phrase(n)
	case *query.Wildcard:
		return ev.wildcard(n)
	case *query.And:
		return ev.and(n.Children)
	case *query.Or:
		return ev.or(n.Children)
	case *query.Not:
		return ev.not(n.Child)
	}
	return nil, pserrors.InternalError(fmt.Sprintf("unsupported query node %T", node), nil)
}

// idf is always positive, so every matched term raises a score.
func (ev *evaluator) idf(df int) float64 {
	return 1 + math.Log(float64(ev.docCount)/float64(df+1))
}

func checkField(f store.Field) error {
	_, err := store.ParseField(string(f))
	return err
}

// addTerm unions the postings of (field, term) into m.
func (ev *evaluator) addTerm(m *match, field store.Field, term string) error {
	postings, err := ev.exec.postings.get(ev.ctx, field, term)
	if err != nil {
		return err
	}
	idf := ev.idf(len(postings))
	for _, p := range postings {
		m.docs.Add(p.Doc)
		m.scores[p.Doc] += math.Sqrt(float64(p.Freq)) * idf
	}
	return nil
}

// term matches a literal value on exact fields and every analyzed token of
// value on tokenized fields.
func (ev *evaluator) term(field store.Field, value string) (*match, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	if !field.Tokenized() {
		m := newMatch()
		return m, ev.addTerm(m, field, value)
	}

	terms := ev.exec.analyzer.Terms(value)
	if len(terms) == 0 {
		return vacuous(), nil
	}
	m := newMatch()
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		if err := ev.addTerm(m, field, t); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (ev *evaluator) phrase(n *query.Phrase) (*match, error) {
	if err := checkField(n.Field); err != nil {
		return nil, err
	}
	if !n.Field.Tokenized() {
		return ev.term(n.Field, n.Text)
	}

	tokens := ev.exec.analyzer.Tokenize(n.Text)
	switch len(tokens) {
	case 0:
		return vacuous(), nil
	case 1:
		return ev.term(n.Field, tokens[0].Term)
	}

	// per token: document -> positions
	positions := make([]map[uint32]*roaring.Bitmap, len(tokens))
	var idfSum float64
	var candidates *roaring.Bitmap
	for i, tok := range tokens {
		postings, err := ev.exec.postings.get(ev.ctx, n.Field, tok.Term)
		if err != nil {
			return nil, err
		}
		idfSum += ev.idf(len(postings))

		docs := roaring.New()
		positions[i] = make(map[uint32]*roaring.Bitmap, len(postings))
		for _, p := range postings {
			docs.Add(p.Doc)
			positions[i][p.Doc] = p.Positions
		}
		if candidates == nil {
			candidates = docs
		} else {
			candidates.And(docs)
		}
	}

	m := newMatch()
	it := candidates.Iterator()
	for it.HasNext() {
		doc := it.Next()
		freq := phraseFreq(tokens, positions, doc)
		if freq == 0 {
			continue
		}
		m.docs.Add(doc)
		m.scores[doc] += math.Sqrt(float64(freq)) * idfSum
	}
	return m, nil
}

// phraseFreq counts the occurrences of the phrase in doc. Each token must
// sit at the same offset from the first token as in the query, which keeps
// the gaps left by removed stop words.
func phraseFreq(tokens []analysis.Token, positions []map[uint32]*roaring.Bitmap, doc uint32) int {
	first := positions[0][doc]
	if first == nil {
		return 0
	}
	freq := 0
	it := first.Iterator()
	for it.HasNext() {
		start := int64(it.Next())
		found := true
		for i := 1; i < len(tokens); i++ {
			want := start + int64(tokens[i].Position-tokens[0].Position)
			bm := positions[i][doc]
			if want < 0 || want > math.MaxUint32 || bm == nil || !bm.Contains(uint32(want)) {
				found = false
				break
			}
		}
		if found {
			freq++
		}
	}
	return freq
}

func (ev *evaluator) wildcard(n *query.Wildcard) (*match, error) {
	if err := checkField(n.Field); err != nil {
		return nil, err
	}
	prefix, pattern := n.Prefix, n.Pattern
	if n.Field.Tokenized() && ev.exec.analyzer.Options().CaseInsensitive {
		prefix, pattern = strings.ToLower(prefix), strings.ToLower(pattern)
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, pserrors.InvalidPatternError(pattern, err)
	}
	candidates, err := ev.exec.reader.Terms(ev.ctx, n.Field, prefix)
	if err != nil {
		return nil, err
	}

	var terms []string
	for _, t := range candidates {
		if g.Match(t) {
			terms = append(terms, t)
		}
	}
	if len(terms) > ev.exec.maxExpansions {
		return ev.constantUnion(n.Field, terms)
	}

	m := newMatch()
	for _, t := range terms {
		if err := ev.addTerm(m, n.Field, t); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// constantUnion matches every document holding one of terms and gives each
// the same score, the idf of the union. Large expansions read postings past
// the cache so they do not evict it.
func (ev *evaluator) constantUnion(field store.Field, terms []string) (*match, error) {
	ev.exec.logger.Debug("wildcard_constant_score",
		slog.String("field", string(field)),
		slog.Int("terms", len(terms)))

	m := newMatch()
	for _, t := range terms {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		postings, err := ev.exec.reader.Postings(ev.ctx, field, t)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			m.docs.Add(p.Doc)
		}
	}
	score := ev.idf(int(m.docs.GetCardinality()))
	it := m.docs.Iterator()
	for it.HasNext() {
		m.scores[it.Next()] = score
	}
	return m, nil
}

func (ev *evaluator) and(children []query.Node) (*match, error) {
	var acc *match
	for _, c := range children {
		cm, err := ev.eval(c)
		if err != nil {
			return nil, err
		}
		if cm.vacuous {
			continue
		}
		if acc == nil {
			acc = cm
			continue
		}
		acc.docs.And(cm.docs)
		for doc := range acc.scores {
			if !acc.docs.Contains(doc) {
				delete(acc.scores, doc)
			}
		}
		for doc, s := range cm.scores {
			if acc.docs.Contains(doc) {
				acc.scores[doc] += s
			}
		}
	}
	if acc == nil {
		return vacuous(), nil
	}
	return acc, nil
}

func (ev *evaluator) or(children []query.Node) (*match, error) {
	var acc *match
	for _, c := range children {
		cm, err := ev.eval(c)
		if err != nil {
			return nil, err
		}
		if cm.vacuous {
			continue
		}
		if acc == nil {
			acc = cm
			continue
		}
		acc.docs.Or(cm.docs)
		for doc, s := range cm.scores {
			acc.scores[doc] += s
		}
	}
	if acc == nil {
		return vacuous(), nil
	}
	return acc, nil
}

// not matches the complement of its child within the generation; it adds
// no score of its own.
func (ev *evaluator) not(child query.Node) (*match, error) {
	cm, err := ev.eval(child)
	if err != nil {
		return nil, err
	}
	if cm.vacuous {
		return vacuous(), nil
	}
	m := newMatch()
	m.docs = ev.exec.reader.All()
	m.docs.AndNot(cm.docs)
	return m, nil
}
