package pii

import "strings"

// honorifics are stripped during normalization, longest form first so that
// "prof." is removed before "prof" could partially match.
var honorifics = []string{
	"mr.", "mrs.", "ms.", "dr.", "prof.", "ing.",
	"mr", "mrs", "ms", "dr", "prof",
	"herr", "frau", "dhr.", "mevr.",
}

// normalizeMention lower-cases a mention, strips leading honorific titles,
// and trims surrounding whitespace and punctuation.
func normalizeMention(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	for changed := true; changed; {
		changed = false
		for _, title := range honorifics {
			if strings.HasPrefix(s, title+" ") {
				s = strings.TrimSpace(s[len(title)+1:])
				changed = true
			}
		}
	}
	return strings.Trim(s, " \t\n.,;:'\"")
}

// unionFind is a plain parent-index arena with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		// Attach the later root under the earlier one so that class roots
		// stay deterministic regardless of union order.
		if ra < rb {
			u.parent[rb] = ra
		} else {
			u.parent[ra] = rb
		}
	}
}

// LinkEntities groups mentions denoting the same real-world referent and
// returns one canonical key per input entity, index-aligned with entities.
//
// Person and Organization mentions are linked transitively by normalization
// identity, whitespace-bounded substring containment, or shared surname plus
// matching initials. Every other type links by exact normalized text only.
// The canonical key of a class is the normalized form of its first-seen
// (lowest start offset) member, prefixed with the entity type so that equal
// strings of different types never collide.
func LinkEntities(entities []Entity) []string {
	keys := make([]string, len(entities))
	normalized := make([]string, len(entities))
	for i, e := range entities {
		normalized[i] = normalizeMention(e.Text)
	}

	uf := newUnionFind(len(entities))
	for i := range entities {
		if !fuzzyLinked(entities[i].Type) {
			continue
		}
		for j := i + 1; j < len(entities); j++ {
			if entities[j].Type != entities[i].Type {
				continue
			}
			if sameReferent(normalized[i], normalized[j]) {
				uf.union(i, j)
			}
		}
	}

	// The canonical member of each class is the one with the lowest start
	// offset; ties resolved by input order.
	classRep := make(map[int]int)
	for i := range entities {
		root := uf.find(i)
		rep, ok := classRep[root]
		if !ok || entities[i].Start < entities[rep].Start {
			classRep[root] = i
		}
	}

	for i, e := range entities {
		if fuzzyLinked(e.Type) {
			rep := classRep[uf.find(i)]
			keys[i] = string(e.Type) + "|" + normalized[rep]
		} else {
			keys[i] = string(e.Type) + "|" + normalized[i]
		}
	}
	return keys
}

// fuzzyLinked reports whether the type participates in cross-mention
// linking heuristics.
func fuzzyLinked(t EntityType) bool {
	return t == Person || t == Organization
}

// sameReferent applies the three linking rules to two normalized mentions.
func sameReferent(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if containsMention(a, b) || containsMention(b, a) {
		return true
	}
	return initialsMatch(a, b)
}

// containsMention reports whether needle appears in haystack bounded by
// whitespace ("john doe" inside "mr john doe", but not "ohn do").
func containsMention(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// initialsMatch links "j. doe" with "john doe": identical last token, and
// every non-surname token of one mention is a single-letter initial
// matching the first letter of the corresponding token in the other.
// Either mention may be the abbreviated one, so both directions are tried.
func initialsMatch(a, b string) bool {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) < 2 || len(bt) < 2 {
		return false
	}
	return initialsOf(at, bt) || initialsOf(bt, at)
}

// initialsOf reports whether abbrev matches full with every non-surname
// token of abbrev read as an initial.
func initialsOf(abbrev, full []string) bool {
	if len(abbrev) > len(full) {
		return false
	}
	if abbrev[len(abbrev)-1] != full[len(full)-1] {
		return false
	}
	for i := 0; i < len(abbrev)-1; i++ {
		if i >= len(full)-1 {
			return false
		}
		initial := strings.TrimSuffix(abbrev[i], ".")
		if len([]rune(initial)) != 1 {
			return false
		}
		if !strings.HasPrefix(full[i], initial) {
			return false
		}
	}
	return true
}
