package genai

import (
	"testing"

	"github.com/orbitlearn/ollie/internal/domain"
)

func TestDecodeJSONObject(t *testing.T) {
	t.Parallel()

	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"title":"Gravity"}`, "Gravity", false},
		{"fenced object", "```json\n{\"title\":\"Gravity\"}\n```", "Gravity", false},
		{"prose around object", `Sure! {"title":"Gravity"} Hope that helps.`, "Gravity", false},
		{"empty", "", "", true},
		{"no object", "sorry, I can't do that", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var p payload
			err := decodeJSONObject(tc.in, &p)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeJSONObject failed: %v", err)
			}
			if p.Title != tc.want {
				t.Errorf("title = %q, want %q", p.Title, tc.want)
			}
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want domain.Difficulty
	}{
		{"easy", domain.DifficultyEasy},
		{" HARD ", domain.DifficultyHard},
		{"medium", domain.DifficultyMedium},
		{"tricky", domain.DifficultyMedium}, // unknown defaults to medium
		{"", domain.DifficultyMedium},
	}
	for _, tc := range tests {
		if got := parseDifficulty(tc.in); got != tc.want {
			t.Errorf("parseDifficulty(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	c, err := NewClient(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.model == "" || c.imageModel == "" {
		t.Error("expected model defaults to be applied")
	}
}

func TestFirstWords(t *testing.T) {
	t.Parallel()

	if got := firstWords("the water cycle moves water around our planet", 3); got != "the water cycle" {
		t.Errorf("firstWords = %q", got)
	}
	if got := firstWords("short", 10); got != "short" {
		t.Errorf("firstWords = %q", got)
	}
}
