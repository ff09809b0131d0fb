package pii

import "testing"

func TestNormalizeMention(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Mr. John Doe", "john doe"},
		{"Dr. Jane Smith", "jane smith"},
		{"John DOE", "john doe"},
		{"  Prof. Erika Mustermann, ", "erika mustermann"},
		{"Mrs Smith", "smith"},
	}
	for _, c := range cases {
		if got := normalizeMention(c.in); got != c.want {
			t.Errorf("normalizeMention(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLinkEntities(t *testing.T) {
	person := func(text string, start int) Entity {
		return Entity{Type: Person, Text: text, Start: start, End: start + len(text), Confidence: 0.9}
	}

	t.Run("TitleVariation", func(t *testing.T) {
		keys := LinkEntities([]Entity{person("John Doe", 0), person("Mr. John Doe", 50)})
		if keys[0] != keys[1] {
			t.Errorf("title variation not linked: %q vs %q", keys[0], keys[1])
		}
	})

	t.Run("SubstringMention", func(t *testing.T) {
		keys := LinkEntities([]Entity{person("John Doe", 0), person("Doe", 40)})
		if keys[0] != keys[1] {
			t.Errorf("surname mention not linked: %q vs %q", keys[0], keys[1])
		}
	})

	t.Run("Initials", func(t *testing.T) {
		keys := LinkEntities([]Entity{person("John Doe", 0), person("J. Doe", 30)})
		if keys[0] != keys[1] {
			t.Errorf("initials not linked: %q vs %q", keys[0], keys[1])
		}
	})

	t.Run("InitialsWrongLetter", func(t *testing.T) {
		keys := LinkEntities([]Entity{person("John Doe", 0), person("K. Doe", 30)})
		if keys[0] == keys[1] {
			t.Error("mismatched initial incorrectly linked")
		}
	})

	t.Run("DifferentPeople", func(t *testing.T) {
		keys := LinkEntities([]Entity{person("John Doe", 0), person("Jane Smith", 30)})
		if keys[0] == keys[1] {
			t.Error("unrelated people linked")
		}
	})

	t.Run("TransitiveClosure", func(t *testing.T) {
		// "J. Doe" links to "John Doe" via initials and to "Mr. John Doe"
		// via the shared class even though the two never match directly.
		keys := LinkEntities([]Entity{
			person("J. Doe", 80),
			person("John Doe", 0),
			person("Mr. John Doe", 40),
		})
		if keys[0] != keys[1] || keys[1] != keys[2] {
			t.Errorf("transitive closure broken: %v", keys)
		}
	})

	t.Run("CanonicalKeyIsFirstMention", func(t *testing.T) {
		keys := LinkEntities([]Entity{person("Mr. John Doe", 10), person("John Doe", 90)})
		want := string(Person) + "|john doe"
		if keys[0] != want {
			t.Errorf("canonical key = %q, want %q", keys[0], want)
		}
	})

	t.Run("TypesNeverMix", func(t *testing.T) {
		keys := LinkEntities([]Entity{
			{Type: Person, Text: "Acme", Start: 0, End: 4},
			{Type: Organization, Text: "Acme", Start: 20, End: 24},
		})
		if keys[0] == keys[1] {
			t.Error("person and organization with equal text share a key")
		}
	})

	t.Run("ExactOnlyForStructuredTypes", func(t *testing.T) {
		keys := LinkEntities([]Entity{
			{Type: Email, Text: "a@b.com", Start: 0, End: 7},
			{Type: Email, Text: "a@b.com", Start: 30, End: 37},
			{Type: Email, Text: "c@d.com", Start: 60, End: 67},
		})
		if keys[0] != keys[1] {
			t.Error("identical emails not linked")
		}
		if keys[0] == keys[2] {
			t.Error("distinct emails linked")
		}
	})
}
