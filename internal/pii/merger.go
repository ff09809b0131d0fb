package pii

import "sort"

// contextualTypes are the entity types where the contextual recognizer is
// more reliable than shape matching. For everything else the pattern
// detector wins on overlap.
var contextualTypes = map[EntityType]bool{
	Person:       true,
	Organization: true,
	Location:     true,
}

// Merge combines pattern and recognizer entities according to mode. The
// returned list is sorted by start offset and contains no overlapping spans.
func Merge(patternEntities, recognizerEntities []Entity, mode DetectionMode) []Entity {
	switch mode {
	case PatternOnly:
		return sortByStart(patternEntities)
	case RecognizerOnly:
		return sortByStart(recognizerEntities)
	}

	merged := make([]Entity, 0, len(patternEntities)+len(recognizerEntities))
	merged = append(merged, patternEntities...)
	merged = append(merged, recognizerEntities...)
	merged = sortByStart(merged)

	var result []Entity
	for _, e := range merged {
		if len(result) == 0 || !e.Overlaps(result[len(result)-1]) {
			result = append(result, e)
			continue
		}
		last := &result[len(result)-1]
		if hybridWins(e, *last) {
			*last = e
		}
	}
	return result
}

// hybridWins decides overlap between two entities during Hybrid merging.
//
// Cross-source: the recognizer wins for Person/Organization/Location (name
// shapes vary too much for regex), the pattern detector wins for structured
// types. Same source or same type: higher confidence, then earlier start,
// then the longer span, then the pattern source.
func hybridWins(challenger, incumbent Entity) bool {
	if challenger.Source != incumbent.Source && challenger.Type != incumbent.Type {
		return preferredSource(challenger) && !preferredSource(incumbent)
	}
	if challenger.Confidence != incumbent.Confidence {
		return challenger.Confidence > incumbent.Confidence
	}
	if challenger.Start != incumbent.Start {
		return challenger.Start < incumbent.Start
	}
	if challenger.End != incumbent.End {
		return challenger.End > incumbent.End
	}
	return challenger.Source == SourcePattern && incumbent.Source == SourceRecognizer
}

// preferredSource reports whether the entity came from the detector that is
// considered authoritative for its type.
func preferredSource(e Entity) bool {
	if contextualTypes[e.Type] {
		return e.Source == SourceRecognizer
	}
	return e.Source == SourcePattern
}

func sortByStart(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}
