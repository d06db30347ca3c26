// Package fulltext implements the full-text inverted-index DataHolder:
// VDocs, word entries, immutable CommitSteps layering a suffix map and
// two typo multimaps, and the incremental build/query protocol.
package fulltext

import (
	"sort"
	"strings"
	"sync"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
)

// VDoc is a unique text document: one per unique text value across rows,
// built from one or more named fields. FieldWordCounts holds, per field,
// how many words of that field landed in this VDoc; FreqWordCounts holds
// each word's total occurrence count across all of the doc's fields. The
// two back the per-document and most-frequent-word normalization Select
// applies at query time.
type VDoc struct {
	Key             string
	FieldWordCounts map[string]int
	FreqWordCounts  map[string]int
	WordsCount      int
	fieldOccurs     map[string][]fieldOccurrence
}

// fieldOccurrence is one occurrence of a word within a VDoc: the field it
// came from and its position (word offset) within that field's text.
type fieldOccurrence struct {
	Field string
	Pos   int
}

// posting is one occurrence of a word within a VDoc in a given field: the
// document and field it was found in, and its positions (word offsets)
// within that field's text. A word appearing in more than one field of
// the same document gets one posting per field so Select can weight each
// occurrence by the field it came from.
type posting struct {
	VDocID    int
	Field     string
	Positions []int
}

// wordEntry is the posting list for one globally unique word id, plus the
// "current step position" offset incremental rebuild uses to know how
// much of the list belongs to the step under construction.
type wordEntry struct {
	Word         string
	Postings     []posting
	StepPosition int
}

// Status is the decision StartCommit makes for the active step.
type Status int

const (
	StatusCreateNew Status = iota
	StatusRecommitLast
	StatusFullRebuild
)

// CommitStep is an immutable snapshot of one incremental build pass: a
// suffix map from word suffixes to word id, two typo multimaps bucketed
// by edit distance, and the base offset into the holder's global word
// array.
type CommitStep struct {
	WordOffset int
	Words      []wordEntry // local id -> entry, local id = global id - WordOffset
	SuffixMap  map[string][]int
	TyposHalf  map[string][]WordTypo
	TyposMax   map[string][]WordTypo
	valid      bool
}

// DataHolder owns the VDoc list and the ordered sequence of CommitSteps
// that together cover the global word id space.
type DataHolder struct {
	mu sync.RWMutex

	maxTypos     int
	wordOverride map[string]int

	vdocs []VDoc
	steps []*CommitStep

	dirty bool
}

// New builds an empty holder. maxTypos is the default MaxTyposInWord();
// wordOverride lets specific words raise or lower that ceiling.
func New(maxTypos int, wordOverride map[string]int) *DataHolder {
	return &DataHolder{maxTypos: maxTypos, wordOverride: wordOverride}
}

// MaxTyposInWord returns the effective typo ceiling for word.
func (h *DataHolder) MaxTyposInWord(word string) int {
	if h.wordOverride != nil {
		if v, ok := h.wordOverride[word]; ok {
			return v
		}
	}
	return h.maxTypos
}

// AddDoc registers a multi-field text document, marking the holder dirty
// so the next StartCommit rebuilds or extends the index. fields maps a
// field name to that field's raw text; each field is tokenized on its
// own so the resulting postings remember which field a word occurrence
// came from, letting Select apply SelectOptions.FieldWeights per match
// instead of treating the whole document as one undifferentiated blob.
func (h *DataHolder) AddDoc(fields map[string]string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	fieldWordCounts := make(map[string]int, len(fields))
	freq := map[string]int{}
	occurs := map[string][]fieldOccurrence{}
	total := 0
	var key string

	for field, text := range fields {
		words := strings.Fields(strings.ToLower(text))
		fieldWordCounts[field] = len(words)
		for i, w := range words {
			freq[w]++
			occurs[w] = append(occurs[w], fieldOccurrence{Field: field, Pos: i})
		}
		total += len(words)
		if key == "" {
			key = text
		}
	}

	h.vdocs = append(h.vdocs, VDoc{
		Key:             key,
		FieldWordCounts: fieldWordCounts,
		FreqWordCounts:  freq,
		WordsCount:      total,
		fieldOccurs:     occurs,
	})
	h.dirty = true
	return len(h.vdocs) - 1
}

// StartCommit decides FullRebuild when completeUpdated is set, when there
// are no steps yet, or when the last step is invalid (a failed build);
// otherwise CreateNew. It never returns RecommitLast.
func (h *DataHolder) StartCommit(completeUpdated bool) Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if completeUpdated || len(h.steps) == 0 {
		return StatusFullRebuild
	}
	if !h.steps[len(h.steps)-1].valid {
		return StatusFullRebuild
	}
	return StatusCreateNew
}

// Commit runs the build for the decision returned by StartCommit,
// producing one new (or replacement) CommitStep from the current vdocs.
// Out-of-memory or any build failure marks the step invalid, requiring a
// full rebuild on the next commit.
func (h *DataHolder) Commit(status Status) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch status {
	case StatusFullRebuild:
		h.steps = nil
	case StatusRecommitLast:
		if len(h.steps) > 0 {
			h.steps = h.steps[:len(h.steps)-1]
		}
	}

	base := 0
	if len(h.steps) > 0 {
		last := h.steps[len(h.steps)-1]
		base = last.WordOffset + len(last.Words)
	}

	step, err := h.buildStep(base)
	if err != nil {
		step = &CommitStep{WordOffset: base, valid: false}
		h.steps = append(h.steps, step)
		return err
	}
	h.steps = append(h.steps, step)
	h.dirty = false
	return nil
}

func (h *DataHolder) buildStep(base int) (*CommitStep, error) {
	wordIndex := map[string]int{}
	var words []wordEntry

	for vdocID, vd := range h.vdocs {
		for word, occs := range vd.fieldOccurs {
			idx, ok := wordIndex[word]
			if !ok {
				idx = len(words)
				wordIndex[word] = idx
				words = append(words, wordEntry{Word: word})
			}
			byField := map[string][]int{}
			for _, occ := range occs {
				byField[occ.Field] = append(byField[occ.Field], occ.Pos)
			}
			for field, positions := range byField {
				words[idx].Postings = append(words[idx].Postings, posting{VDocID: vdocID, Field: field, Positions: positions})
			}
		}
	}

	suffixMap := map[string][]int{}
	typosHalf := map[string][]WordTypo{}
	typosMax := map[string][]WordTypo{}

	for localID, we := range words {
		globalID := base + localID
		for i := range we.Word {
			suffix := we.Word[i:]
			suffixMap[suffix] = append(suffixMap[suffix], globalID)
		}

		maxT := h.MaxTyposInWord(we.Word)
		half := HalfLimit(h.maxTypos)
		if maxT <= 0 {
			continue
		}
		for _, tv := range GenerateTypos(we.Word, maxT) {
			wt := WordTypo{WordID: uint32(globalID)}
			if tv.EditDist <= half {
				typosHalf[tv.Word] = append(typosHalf[tv.Word], wt)
			} else if maxT > half {
				typosMax[tv.Word] = append(typosMax[tv.Word], wt)
			}
		}
	}

	return &CommitStep{WordOffset: base, Words: words, SuffixMap: suffixMap, TyposHalf: typosHalf, TyposMax: typosMax, valid: true}, nil
}

// GetStep locates the step whose WordOffset <= id and whose successor's
// WordOffset is > id.
func (h *DataHolder) GetStep(wordID int) (*CommitStep, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i, s := range h.steps {
		next := 1 << 62
		if i+1 < len(h.steps) {
			next = h.steps[i+1].WordOffset
		}
		if s.WordOffset <= wordID && wordID < next {
			return s, nil
		}
	}
	return nil, coreerrors.New(coreerrors.KindNotFound, "no commit step covers word id %d", wordID)
}

// BuildWordID combines a step's base offset with a local id to produce a
// globally unique word id.
func BuildWordID(base, localID int) int { return base + localID }

// FindWord returns the global word id for word, searching steps from
// most to least recent.
func (h *DataHolder) FindWord(word string) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.steps) - 1; i >= 0; i-- {
		s := h.steps[i]
		for localID, we := range s.Words {
			if we.Word == word {
				return s.WordOffset + localID, true
			}
		}
	}
	return 0, false
}

// sortedKeys returns the keys of a typo map in sorted order, for
// deterministic iteration.
func sortedKeys(m map[string][]WordTypo) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
