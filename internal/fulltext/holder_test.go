package fulltext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTypoBucketing covers maxTypos=2, word
// "query"; all 1-typo variants land in typosHalf, all 2-typo variants
// land in typosMax; findWord("query") returns its id, and
// GetStep(id).WordOffset matches the step's stamped base.
func TestTypoBucketing(t *testing.T) {
	h := New(2, nil)
	h.AddDoc(map[string]string{"text": "query"})
	require.Equal(t, StatusFullRebuild, h.StartCommit(false))
	require.NoError(t, h.Commit(StatusFullRebuild))

	id, ok := h.FindWord("query")
	require.True(t, ok)

	step, err := h.GetStep(id)
	require.NoError(t, err)
	require.Equal(t, 0, step.WordOffset)

	variants := GenerateTypos("query", 2)
	sawHalf, sawMax := false, false
	for _, tv := range variants {
		_, inHalf := step.TyposHalf[tv.Word]
		_, inMax := step.TyposMax[tv.Word]
		if tv.EditDist <= HalfLimit(2) {
			require.True(t, inHalf, "1-typo variant %q should be in typosHalf", tv.Word)
			sawHalf = true
		} else {
			require.True(t, inMax, "2-typo variant %q should be in typosMax", tv.Word)
			sawMax = true
		}
	}
	require.True(t, sawHalf)
	require.True(t, sawMax)
}

func TestMaxTyposInWordOverrideSkipsTyposMax(t *testing.T) {
	h := New(2, map[string]int{"query": 1})
	require.Equal(t, 1, h.MaxTyposInWord("query"))
	h.AddDoc(map[string]string{"text": "query"})
	require.NoError(t, h.Commit(StatusFullRebuild))

	id, ok := h.FindWord("query")
	require.True(t, ok)
	step, err := h.GetStep(id)
	require.NoError(t, err)
	require.Empty(t, step.TyposMax)
	require.NotEmpty(t, step.TyposHalf)
}

func TestWordIDsAreGloballyMonotonicAcrossSteps(t *testing.T) {
	h := New(1, nil)
	h.AddDoc(map[string]string{"text": "alpha beta"})
	require.NoError(t, h.Commit(StatusFullRebuild))

	h.AddDoc(map[string]string{"text": "gamma delta"})
	require.NoError(t, h.Commit(StatusCreateNew))

	seen := map[int]bool{}
	for _, s := range h.steps {
		for localID := range s.Words {
			id := s.WordOffset + localID
			require.False(t, seen[id], "word id %d reused across steps", id)
			seen[id] = true
		}
	}
}

func TestGetStepUnknownWordFails(t *testing.T) {
	h := New(1, nil)
	_, err := h.GetStep(99)
	require.Error(t, err)
}

func TestSelectRanksIntersectedTerms(t *testing.T) {
	h := New(0, nil)
	h.AddDoc(map[string]string{"body": "the quick brown fox"})
	h.AddDoc(map[string]string{"body": "the quick fox jumps"})
	h.AddDoc(map[string]string{"body": "lazy dog sleeps"})
	require.NoError(t, h.Commit(StatusFullRebuild))

	data, err := h.Select([]string{"quick", "fox"}, SelectOptions{BuildWorkers: 2})
	require.NoError(t, err)
	require.Len(t, data.Infos, 2)
	for _, info := range data.Infos {
		require.NotEqual(t, 2, info.VDocID) // "lazy dog sleeps" has neither term
		require.Equal(t, "body", info.Field)
	}
}

func TestSelectBoundsAreaOutput(t *testing.T) {
	h := New(0, nil)
	h.AddDoc(map[string]string{"body": "fox fox fox fox"})
	require.NoError(t, h.Commit(StatusFullRebuild))

	data, err := h.Select([]string{"fox"}, SelectOptions{WithAreas: true, MaxAreasInDoc: 2, BuildWorkers: 1})
	require.NoError(t, err)
	require.Len(t, data.Areas, 2)
	for _, a := range data.Areas {
		require.Equal(t, "body", a.Field)
	}
}

// TestSelectAppliesFieldWeights covers a term matching once in a
// low-weighted field and once in a high-weighted field across two docs;
// the doc whose match is in the higher-weighted field ranks first even
// though both docs otherwise have identical word/frequency stats.
func TestSelectAppliesFieldWeights(t *testing.T) {
	h := New(0, nil)
	h.AddDoc(map[string]string{"title": "fox", "body": "irrelevant"})
	h.AddDoc(map[string]string{"title": "irrelevant", "body": "fox"})
	require.NoError(t, h.Commit(StatusFullRebuild))

	data, err := h.Select([]string{"fox"}, SelectOptions{
		FieldWeights: map[string]float64{"title": 10, "body": 1},
		BuildWorkers: 1,
	})
	require.NoError(t, err)
	require.Len(t, data.Infos, 2)
	require.Equal(t, 0, data.Infos[0].VDocID, "match in the higher-weighted title field should rank first")
	require.Equal(t, "title", data.Infos[0].Field)
	require.Greater(t, data.Infos[0].Rank, data.Infos[1].Rank)
}
