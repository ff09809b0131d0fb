package pii

import (
	"regexp"
	"strings"
)

// patternRule pairs a compiled regex with the entity type it detects and the
// confidence assigned to its matches. Pattern matches are binary, so the
// confidence reflects how specific the shape is, not match quality.
type patternRule struct {
	name       string
	entityType EntityType
	re         *regexp.Regexp
	confidence float64
	// languages the rule applies to; empty means every language.
	languages []string
}

// typePriority ranks entity types for pattern-vs-pattern overlap resolution.
// More structurally specific types win over generic ones.
var typePriority = map[EntityType]int{
	Law:                 100,
	Email:               90,
	TechnicalIdentifier: 85,
	Identification:      80,
	Case:                75,
	Phone:               70,
	Money:               50,
	Date:                45,
	Organization:        30,
	Person:              25,
	Location:            20,
}

// replacementToken matches tokens produced by earlier anonymization runs,
// e.g. [PERSON-A] or [TECHNICAL_IDENTIFIER-3]. Spans inside these are never
// re-detected.
var replacementToken = regexp.MustCompile(`\[[A-Z_]+-[A-Z0-9]+\]`)

func defaultRules() []patternRule {
	return []patternRule{
		{
			name:       "email",
			entityType: Email,
			re:         regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			confidence: 0.95,
		},
		{
			name:       "uuid",
			entityType: TechnicalIdentifier,
			re:         regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
			confidence: 0.95,
		},
		{
			name:       "ipv4",
			entityType: TechnicalIdentifier,
			re:         regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1?[0-9]{1,2})\.){3}(?:25[0-5]|2[0-4][0-9]|1?[0-9]{1,2})\b`),
			confidence: 0.9,
		},
		{
			name:       "ipv6",
			entityType: TechnicalIdentifier,
			re:         regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){5,7}[0-9a-fA-F]{1,4}\b`),
			confidence: 0.9,
		},
		{
			name:       "phone-us",
			entityType: Phone,
			re:         regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}\b`),
			confidence: 0.9,
		},
		{
			name:       "phone-dashed",
			entityType: Phone,
			re:         regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`),
			confidence: 0.85,
		},
		{
			name:       "phone-intl",
			entityType: Phone,
			re:         regexp.MustCompile(`\+\d{1,3}[\s\-]?\(?\d{1,4}\)?(?:[\s\-]?\d{2,4}){2,4}\b`),
			confidence: 0.8,
		},
		{
			name:       "phone-loose",
			entityType: Phone,
			re:         regexp.MustCompile(`\b\d{4}[\s\-]\d{6,8}\b`),
			confidence: 0.6,
		},
		{
			name:       "ssn-us",
			entityType: Identification,
			re:         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			confidence: 0.9,
			languages:  []string{"en"},
		},
		{
			name:       "id-eu",
			entityType: Identification,
			re:         regexp.MustCompile(`\b[A-Z]{2}\d{6,12}\b`),
			confidence: 0.75,
			languages:  []string{"de", "nl", "fr"},
		},
		{
			name:       "bsn-nl",
			entityType: Identification,
			re:         regexp.MustCompile(`\b\d{4}\.\d{2}\.\d{3}\b`),
			confidence: 0.8,
			languages:  []string{"nl"},
		},
		{
			name:       "money-symbol",
			entityType: Money,
			re:         regexp.MustCompile(`[$€£]\s?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?`),
			confidence: 0.9,
		},
		{
			name:       "money-code",
			entityType: Money,
			re:         regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?\s?(?:USD|EUR|GBP|CHF)\b`),
			confidence: 0.9,
		},
		{
			name:       "date-iso",
			entityType: Date,
			re:         regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
			confidence: 0.9,
		},
		{
			name:       "date-slashed",
			entityType: Date,
			re:         regexp.MustCompile(`\b\d{1,2}[./]\d{1,2}[./]\d{2,4}\b`),
			confidence: 0.75,
		},
		{
			name:       "date-written-en",
			entityType: Date,
			re:         regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
			confidence: 0.85,
			languages:  []string{"en"},
		},
		{
			name:       "date-written-de",
			entityType: Date,
			re:         regexp.MustCompile(`\b\d{1,2}\.\s?(?:Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s+\d{4}\b`),
			confidence: 0.85,
			languages:  []string{"de"},
		},
		{
			name:       "case-labelled",
			entityType: Case,
			re:         regexp.MustCompile(`\b(?:Case|Docket|File)\s+(?:No\.?|Number|#)\s*:?\s*[\w\-/]+\b`),
			confidence: 0.9,
		},
		{
			name:       "case-docket",
			entityType: Case,
			re:         regexp.MustCompile(`\b\d{2}-[A-Z]{2,4}-\d{4,}\b`),
			confidence: 0.85,
		},
		{
			name:       "case-ecli",
			entityType: Case,
			re:         regexp.MustCompile(`\bECLI:[A-Z]{2}:[A-Z0-9]+:\d{4}:[A-Z0-9.]+\b`),
			confidence: 0.95,
		},
		{
			name:       "person-titled",
			entityType: Person,
			re:         regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.\s+[A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß]+)*`),
			confidence: 0.9,
		},
		{
			name:       "organization-suffixed",
			entityType: Organization,
			re:         regexp.MustCompile(`\b[A-Z][A-Za-z&]*(?:\s+(?:[A-Z][A-Za-z&]*|of|and|for|&))*\s+(?:Inc\.|LLC|Ltd\.|GmbH|B\.V\.|S\.A\.|Corporation|Corp\.|Company|Co\.)`),
			confidence: 0.85,
		},
		{
			name:       "organization-court",
			entityType: Organization,
			re:         regexp.MustCompile(`\b(?:Supreme Court|District Court|Circuit Court|Court of Appeals?)(?:\s+(?:of|for)\s+[A-Z][A-Za-z\s]+)?\b`),
			confidence: 0.8,
		},
	}
}

// legalRules match statutory references. They are detected as Law entities
// purely so that anonymization can skip anything overlapping them.
func legalRules() []patternRule {
	return []patternRule{
		{
			name:       "law-article",
			entityType: Law,
			re:         regexp.MustCompile(`\b(?:Article|Section|Art\.|Sec\.|§)\s*\d+[a-z]?(?:\(\d+\))?(?:\s+(?:of\s+the\s+)?(?:GDPR|[A-Z][A-Za-z]+(?:\s+(?:Act|Code|Regulation|Directive))))?`),
			confidence: 0.95,
		},
		{
			name:       "law-usc",
			entityType: Law,
			re:         regexp.MustCompile(`\b\d+\s+U\.S\.C\.?\s+§?\s*\d+\b`),
			confidence: 0.95,
		},
		{
			name:       "law-statute",
			entityType: Law,
			re:         regexp.MustCompile(`\b[A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*\s+(?:Act|Code|Regulation|Directive)(?:\s+(?:of\s+)?\d{4})?\b`),
			confidence: 0.85,
		},
		{
			name:       "law-gdpr",
			entityType: Law,
			re:         regexp.MustCompile(`\b(?:GDPR|DSGVO|AVG|CCPA|HIPAA)\b`),
			confidence: 0.95,
		},
		{
			name:       "law-amendment",
			entityType: Law,
			re:         regexp.MustCompile(`\b(?:First|Second|Third|Fourth|Fifth|Sixth|Seventh|Eighth|Ninth|Tenth|Eleventh|Fourteenth)\s+Amendment\b`),
			confidence: 0.95,
		},
		{
			name:       "law-german-statute",
			entityType: Law,
			re:         regexp.MustCompile(`\b(?:BGB|StGB|ZPO|StPO|HGB|VwGO|GG)\b`),
			confidence: 0.95,
			languages:  []string{"de"},
		},
	}
}

// likelyName matches sequences of capitalized words that are probably person
// names. Matches are emitted with lower confidence than titled names.
var likelyName = regexp.MustCompile(`\b[A-ZÄÖÜ][a-zäöüß]+(?:\s+(?:van der|von der|van|von|de|der|den|ter))?(?:\s+[A-ZÄÖÜ][a-zäöüß]+)+\b`)

// nameExclusions are capitalized phrases that look like names but are not.
// The exclusion applies when a candidate equals or contains one of these,
// with any leading article ignored ("The United States" is still excluded).
var nameExclusions = map[string]bool{
	"united states":   true,
	"supreme court":   true,
	"district court":  true,
	"circuit court":   true,
	"court of":        true,
	"state of":        true,
	"city of":         true,
	"county of":       true,
	"european union":  true,
	"member state":    true,
	"data protection": true,
}

// articles are stripped from the front of a name candidate before the
// exclusion lookup.
var articles = []string{"the ", "a ", "an "}

// isExcludedName reports whether a capitalized sequence is a known non-name
// phrase rather than a person name.
func isExcludedName(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, article := range articles {
		if rest, ok := strings.CutPrefix(lower, article); ok {
			lower = rest
			break
		}
	}
	if nameExclusions[lower] {
		return true
	}
	padded := " " + lower + " "
	for phrase := range nameExclusions {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
