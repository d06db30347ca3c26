package fulltext

import "unsafe"

// WordTypo is the compact typo-map entry: a word id plus a packed
// position vector, fixed at 16 bytes so bulk typo maps stay cache-dense
//.
type WordTypo struct {
	WordID   uint32
	Position [12]byte
}

// Compile-time size assertions: a negative array length fails to compile
// if sizeof(WordTypo) drifts from 16 in either direction.
var (
	_ [16 - int(unsafe.Sizeof(WordTypo{}))]byte
	_ [int(unsafe.Sizeof(WordTypo{})) - 16]byte
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// oneEditVariants returns every string reachable from word by exactly one
// transposition, insertion, deletion, or substitution.
func oneEditVariants(word string) []string {
	r := []rune(word)
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == word {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	// deletion
	for i := range r {
		add(string(r[:i]) + string(r[i+1:]))
	}
	// transposition of adjacent runes
	for i := 0; i+1 < len(r); i++ {
		cp := append([]rune(nil), r...)
		cp[i], cp[i+1] = cp[i+1], cp[i]
		add(string(cp))
	}
	// substitution
	for i := range r {
		for _, c := range alphabet {
			if c == r[i] {
				continue
			}
			cp := append([]rune(nil), r...)
			cp[i] = c
			add(string(cp))
		}
	}
	// insertion
	for i := 0; i <= len(r); i++ {
		for _, c := range alphabet {
			cp := make([]rune, 0, len(r)+1)
			cp = append(cp, r[:i]...)
			cp = append(cp, c)
			cp = append(cp, r[i:]...)
			add(string(cp))
		}
	}
	return out
}

// TypoVariant is one generated misspelling with the edit distance (1 or
// 2) it was produced at.
type TypoVariant struct {
	Word     string
	EditDist int
}

// GenerateTypos enumerates every misspelling of word up to maxTypos edits,
// capped at two: a maxTypos above 2 yields the same variants as 2.
// Distance-1 variants come from oneEditVariants; distance-2 variants are
// generated by applying a second edit to each distance-1 result and
// keeping only strings not already reachable in one edit, so the
// reported distance is exact for maxTypos<=2.
func GenerateTypos(word string, maxTypos int) []TypoVariant {
	if maxTypos <= 0 {
		return nil
	}
	dist1 := oneEditVariants(word)
	out := make([]TypoVariant, 0, len(dist1))
	at1 := make(map[string]struct{}, len(dist1))
	for _, v := range dist1 {
		out = append(out, TypoVariant{Word: v, EditDist: 1})
		at1[v] = struct{}{}
	}
	if maxTypos < 2 {
		return out
	}

	seen2 := make(map[string]struct{})
	for _, v := range dist1 {
		for _, v2 := range oneEditVariants(v) {
			if v2 == word {
				continue
			}
			if _, ok := at1[v2]; ok {
				continue
			}
			if _, ok := seen2[v2]; ok {
				continue
			}
			seen2[v2] = struct{}{}
			out = append(out, TypoVariant{Word: v2, EditDist: 2})
		}
	}
	return out
}

// HalfLimit is floor(maxTypos/2), the edit-distance ceiling for typosHalf
//.
func HalfLimit(maxTypos int) int { return maxTypos / 2 }
