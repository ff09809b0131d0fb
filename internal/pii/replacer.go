package pii

import (
	"fmt"
	"strings"
	"sync"
)

// ReplacementMap assigns and remembers one stable replacement token per
// canonical entity. It is the only shared mutable state in the engine;
// lookup-or-allocate is serialized so concurrent batch processing still
// allocates tokens in document order.
type ReplacementMap struct {
	mu             sync.Mutex
	tokens         map[string]string
	keyOrder       []string
	letterCounters map[EntityType]int
	numberCounters map[EntityType]int
	counts         map[EntityType]int64
	total          int64
}

// NewReplacementMap returns an empty map. It lives for the duration of an
// anonymization session and is never persisted.
func NewReplacementMap() *ReplacementMap {
	m := &ReplacementMap{}
	m.reset()
	return m
}

func (m *ReplacementMap) reset() {
	m.tokens = make(map[string]string)
	m.keyOrder = nil
	m.letterCounters = make(map[EntityType]int)
	m.numberCounters = make(map[EntityType]int)
	m.counts = make(map[EntityType]int64)
	m.total = 0
}

// Assign returns the token for canonicalKey, allocating the next index of
// the entity type's sequence on first encounter.
//
// For Person and Organization, a key with no exact match is also compared
// against known keys of the same type with the linker's name heuristics, in
// allocation order, so "Mr. John Doe" in a later document reuses the token
// "John Doe" received earlier in the batch.
func (m *ReplacementMap) Assign(canonicalKey string, t EntityType) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, ok := m.tokens[canonicalKey]; ok {
		return token
	}
	if fuzzyLinked(t) {
		prefix := string(t) + "|"
		norm := strings.TrimPrefix(canonicalKey, prefix)
		for _, key := range m.keyOrder {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			if sameReferent(norm, strings.TrimPrefix(key, prefix)) {
				token := m.tokens[key]
				m.storeLocked(canonicalKey, token)
				return token
			}
		}
	}
	token := m.allocateLocked(t)
	m.storeLocked(canonicalKey, token)
	return token
}

func (m *ReplacementMap) storeLocked(key, token string) {
	m.tokens[key] = token
	m.keyOrder = append(m.keyOrder, key)
}

// AssignFresh allocates a new token unconditionally. Used when consistent
// replacement is disabled and every occurrence gets an independent token.
func (m *ReplacementMap) AssignFresh(t EntityType) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocateLocked(t)
}

func (m *ReplacementMap) allocateLocked(t EntityType) string {
	if t.UsesLetterIndex() {
		m.letterCounters[t]++
		return fmt.Sprintf("[%s-%s]", t, toLetters(m.letterCounters[t]))
	}
	m.numberCounters[t]++
	return fmt.Sprintf("[%s-%d]", t, m.numberCounters[t])
}

// Count records one surviving entity in the session statistics.
func (m *ReplacementMap) Count(t EntityType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[t]++
	m.total++
}

// Stats returns a copy of the accumulated entity statistics.
func (m *ReplacementMap) Stats() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[EntityType]int64, len(m.counts))
	for t, n := range m.counts {
		counts[t] = n
	}
	return Statistics{EntityCounts: counts, TotalEntities: m.total}
}

// Clear resets the mapping, every counter, and the statistics. Idempotent;
// supports right-to-erasure requests.
func (m *ReplacementMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// Len returns the number of distinct canonical entities seen so far.
func (m *ReplacementMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// toLetters converts a 1-based index to bijective base-26 letters, the way
// spreadsheets label columns: 1->A, 26->Z, 27->AA, 28->AB.
func toLetters(n int) string {
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}
