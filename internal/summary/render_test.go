package summary

import (
	"strings"
	"testing"

	"github.com/orbitlearn/ollie/internal/domain"
)

func TestSectionsOmitAbsentFields(t *testing.T) {
	t.Parallel()

	s := domain.Summary{
		Overview: "Volcanoes are mountains that can erupt.",
		FunFacts: []string{"Some volcanoes are under the sea!"},
	}

	sections := Sections(s)
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[0].Heading != "Overview" || sections[1].Heading != "Fun Facts" {
		t.Errorf("Unexpected sections: %+v", sections)
	}
}

func TestSectionsEmptySummary(t *testing.T) {
	t.Parallel()

	if sections := Sections(domain.Summary{}); len(sections) != 0 {
		t.Fatalf("Expected no sections for empty summary, got %d", len(sections))
	}
	if out := Render(domain.Summary{}); out != "" {
		t.Fatalf("Expected empty render, got %q", out)
	}
}

func TestRenderVocabularyPairs(t *testing.T) {
	t.Parallel()

	s := domain.Summary{
		Title: "Water Cycle",
		Vocabulary: []domain.VocabularyEntry{
			{Term: "evaporation", Definition: "water turning into vapor"},
		},
	}

	out := Render(s)
	if !strings.Contains(out, "Water Cycle") {
		t.Errorf("Expected title in render, got %q", out)
	}
	if !strings.Contains(out, "evaporation — water turning into vapor") {
		t.Errorf("Expected vocabulary pair in render, got %q", out)
	}
}
