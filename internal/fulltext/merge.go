package fulltext

import (
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// AreaHolder is one positional occurrence of a matched term within a
// document, returned only when area information was requested.
type AreaHolder struct {
	VDocID int
	Field  string
	Pos    int
}

// MergeInfo is one ranked match: the document, its score, the field it
// was found in, an index into the accompanying AreaHolder list (-1 if
// areas were not requested), and the global merge-offset it was produced
// at.
type MergeInfo struct {
	VDocID      int
	Rank        float64
	Field       string
	AreaIndex   int
	MergeOffset int
}

// MergeData is the output of Select: ranked matches plus, optionally, the
// positional areas backing them.
type MergeData struct {
	Infos []MergeInfo
	Areas []AreaHolder
}

// termHit is one term's score contribution to a document and the
// best-weighted field that contribution came from, so the merged
// MergeInfo/AreaHolder can report a real field instead of the search
// term itself.
type termHit struct {
	score float64
	field string
}

type termHits map[int]termHit

// kMaxMergeLimitValue bounds the global merge-offset so it always fits a
// 16-bit field.
const kMaxMergeLimitValue = 1<<16 - 1

// SelectOptions configures one Select call.
type SelectOptions struct {
	FieldWeights  map[string]float64
	WithAreas     bool
	MaxAreasInDoc int
	StatusMask    map[int]bool // FtMergeStatuses: nil means unrestricted
	BuildWorkers  int
}

// Select runs a DSL term query against h, scoring each term on its own and
// keeping only documents that score on every term (term intersection),
// with a document's score the sum of its per-term scores. Word positions
// are not used in ranking. Honors per-field weights, most-frequent-word
// and avgWordsCount normalization, an optional status mask, and bounded
// output.
func (h *DataHolder) Select(terms []string, opts SelectOptions) (*MergeData, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if opts.BuildWorkers <= 0 {
		opts.BuildWorkers = 1
	}
	avg := h.avgWordsCount()

	hitsPerTerm := make([]termHits, len(terms))

	pool, err := ants.NewPool(opts.BuildWorkers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	wg.Add(len(terms))
	for i, term := range terms {
		i, term := i, term
		_ = pool.Submit(func() {
			defer wg.Done()
			hitsPerTerm[i] = h.scoreTerm(term, opts, avg)
		})
	}
	wg.Wait()

	// intersect: a document must score on every term to survive.
	combined := map[int]float64{}
	fields := map[int]string{}
	for i, hits := range hitsPerTerm {
		if i == 0 {
			for id, hit := range hits {
				combined[id] = hit.score
				fields[id] = hit.field
			}
			continue
		}
		for id := range combined {
			hit, ok := hits[id]
			if !ok {
				delete(combined, id)
				delete(fields, id)
				continue
			}
			combined[id] += hit.score
			if hit.score > 0 {
				fields[id] = hit.field
			}
		}
	}

	if opts.StatusMask != nil {
		for id := range combined {
			if !opts.StatusMask[id] {
				delete(combined, id)
			}
		}
	}

	ids := make([]int, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return combined[ids[i]] > combined[ids[j]] })

	maxAreas := opts.MaxAreasInDoc
	if maxAreas <= 0 {
		maxAreas = 1 << 30
	}

	result := &MergeData{}
	offset := 0
	for _, id := range ids {
		if offset >= kMaxMergeLimitValue {
			break
		}
		mi := MergeInfo{VDocID: id, Rank: combined[id], Field: fields[id], AreaIndex: -1, MergeOffset: offset}
		if opts.WithAreas {
			areas := h.areasFor(id, terms, maxAreas)
			if len(areas) > 0 {
				mi.AreaIndex = len(result.Areas)
				result.Areas = append(result.Areas, areas...)
			}
		}
		result.Infos = append(result.Infos, mi)
		offset++
	}
	return result, nil
}

func (h *DataHolder) avgWordsCount() float64 {
	if len(h.vdocs) == 0 {
		return 0
	}
	total := 0
	for _, v := range h.vdocs {
		total += v.WordsCount
	}
	return float64(total) / float64(len(h.vdocs))
}

func (h *DataHolder) scoreTerm(term string, opts SelectOptions, avg float64) termHits {
	out := termHits{}
	best := map[int]float64{} // vdocID -> largest single-field weight seen, to pick the reported field
	for _, s := range h.steps {
		we, ok := findWordEntry(s, term)
		if !ok {
			continue
		}
		for _, p := range we.Postings {
			weight := 1.0
			vd := h.vdocs[p.VDocID]
			if freqMax := mostFrequentCount(vd.FreqWordCounts); freqMax > 0 {
				weight = float64(vd.FreqWordCounts[term]) / float64(freqMax)
			}
			if avg > 0 {
				weight *= avg / float64(maxInt(vd.WordsCount, 1))
			}
			if fw, ok := opts.FieldWeights[p.Field]; ok {
				weight *= fw
			}
			hit := out[p.VDocID]
			hit.score += weight
			if weight > best[p.VDocID] {
				best[p.VDocID] = weight
				hit.field = p.Field
			}
			out[p.VDocID] = hit
		}
	}
	return out
}

func (h *DataHolder) areasFor(vdocID int, terms []string, limit int) []AreaHolder {
	var areas []AreaHolder
	for _, s := range h.steps {
		for _, term := range terms {
			we, ok := findWordEntry(s, term)
			if !ok {
				continue
			}
			for _, p := range we.Postings {
				if p.VDocID != vdocID {
					continue
				}
				for _, pos := range p.Positions {
					if len(areas) >= limit {
						return areas
					}
					areas = append(areas, AreaHolder{VDocID: vdocID, Field: p.Field, Pos: pos})
				}
			}
		}
	}
	return areas
}

func findWordEntry(s *CommitStep, word string) (*wordEntry, bool) {
	for i := range s.Words {
		if s.Words[i].Word == word {
			return &s.Words[i], true
		}
	}
	return nil, false
}

func mostFrequentCount(freq map[string]int) int {
	max := 0
	for _, c := range freq {
		if c > max {
			max = c
		}
	}
	return max
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
