package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/session"
)

// Generator implements session.ToolGenerator over the OpenAI client.
type Generator struct {
	client *Client
}

// NewGenerator wires the tool generator.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

const generatorInstructions = "You are Ollie, a friendly learning companion for children. " +
	"You create learning material from lesson content. Always answer with a single JSON object " +
	"and nothing else. Keep language warm, simple and encouraging."

func audienceLine(age domain.AgeGroup) string {
	if age == domain.AgeGroupYoung {
		return "The learner is under 9 years old: use very short sentences and everyday words."
	}
	return "The learner is 9 or older: keep it clear and friendly, light detail is fine."
}

func lessonBlock(req session.GenerateRequest) string {
	var sb strings.Builder
	if req.Title != "" {
		sb.WriteString("Lesson title: " + req.Title + "\n")
	}
	if len(req.KeyConcepts) > 0 {
		sb.WriteString("Key concepts: " + strings.Join(req.KeyConcepts, ", ") + "\n")
	}
	sb.WriteString("Lesson content:\n" + req.Content)
	return sb.String()
}

type flashcardPayload struct {
	Cards []struct {
		Front      string `json:"front"`
		Back       string `json:"back"`
		Difficulty string `json:"difficulty"`
		Hint       string `json:"hint"`
	} `json:"cards"`
}

// GenerateFlashcards produces a review deck from the lesson content.
func (g *Generator) GenerateFlashcards(ctx context.Context, req session.GenerateRequest) ([]domain.Flashcard, error) {
	count := req.Count
	if count <= 0 {
		count = 8
	}
	prompt := fmt.Sprintf(
		"Create %d flashcards from this lesson. %s\n"+
			`Return {"cards":[{"front":...,"back":...,"difficulty":"easy"|"medium"|"hard","hint":...}]}. `+
			"Fronts are questions, backs are short answers, hints are optional nudges.\n\n%s",
		count, audienceLine(req.AgeGroup), lessonBlock(req))

	var payload flashcardPayload
	if err := g.client.generateJSON(ctx, generatorInstructions, prompt, &payload); err != nil {
		return nil, fmt.Errorf("generate flashcards: %w", err)
	}
	if len(payload.Cards) == 0 {
		return nil, fmt.Errorf("generate flashcards: model returned no cards")
	}

	cards := make([]domain.Flashcard, 0, len(payload.Cards))
	for _, c := range payload.Cards {
		if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
			continue
		}
		cards = append(cards, domain.Flashcard{
			ID:         uuid.NewString(),
			Front:      strings.TrimSpace(c.Front),
			Back:       strings.TrimSpace(c.Back),
			Difficulty: parseDifficulty(c.Difficulty),
			Hint:       strings.TrimSpace(c.Hint),
		})
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("generate flashcards: no usable cards in model output")
	}
	return cards, nil
}

func parseDifficulty(s string) domain.Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return domain.DifficultyEasy
	case "hard":
		return domain.DifficultyHard
	default:
		return domain.DifficultyMedium
	}
}

type summaryPayload struct {
	Title      string   `json:"title"`
	Overview   string   `json:"overview"`
	KeyPoints  []string `json:"key_points"`
	Vocabulary []struct {
		Term       string `json:"term"`
		Definition string `json:"definition"`
	} `json:"vocabulary"`
	FunFacts []string `json:"fun_facts"`
	Takeaway string   `json:"takeaway"`
}

// GenerateSummary produces a structured lesson summary.
func (g *Generator) GenerateSummary(ctx context.Context, req session.GenerateRequest) (domain.Summary, error) {
	prompt := fmt.Sprintf(
		"Summarize this lesson for a child. %s\n"+
			`Return {"title":...,"overview":...,"key_points":[...],`+
			`"vocabulary":[{"term":...,"definition":...}],"fun_facts":[...],"takeaway":...}. `+
			"Leave out any section you cannot fill well.\n\n%s",
		audienceLine(req.AgeGroup), lessonBlock(req))

	var payload summaryPayload
	if err := g.client.generateJSON(ctx, generatorInstructions, prompt, &payload); err != nil {
		return domain.Summary{}, fmt.Errorf("generate summary: %w", err)
	}

	sum := domain.Summary{
		Title:     strings.TrimSpace(payload.Title),
		Overview:  strings.TrimSpace(payload.Overview),
		KeyPoints: trimAll(payload.KeyPoints),
		FunFacts:  trimAll(payload.FunFacts),
		Takeaway:  strings.TrimSpace(payload.Takeaway),
	}
	for _, v := range payload.Vocabulary {
		if strings.TrimSpace(v.Term) == "" {
			continue
		}
		sum.Vocabulary = append(sum.Vocabulary, domain.VocabularyEntry{
			Term:       strings.TrimSpace(v.Term),
			Definition: strings.TrimSpace(v.Definition),
		})
	}
	if sum.IsEmpty() {
		return domain.Summary{}, fmt.Errorf("generate summary: model returned an empty summary")
	}
	return sum, nil
}

type quizPayload struct {
	Title     string `json:"title"`
	Questions []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correct_answer"`
		Explanation   string   `json:"explanation"`
		Encouragement string   `json:"encouragement"`
	} `json:"questions"`
}

// GenerateQuiz produces a multiple-choice quiz. The result is validated
// before it reaches a session.
func (g *Generator) GenerateQuiz(ctx context.Context, req session.GenerateRequest) (domain.Quiz, error) {
	count := req.Count
	if count <= 0 {
		count = 5
	}
	prompt := fmt.Sprintf(
		"Create a %d-question multiple-choice quiz from this lesson. %s\n"+
			`Return {"title":...,"questions":[{"question":...,"options":[4 strings],`+
			`"correct_answer":0-based index,"explanation":...,"encouragement":...}]}. `+
			"Explanations teach why the answer is right; encouragements cheer the learner on.\n\n%s",
		count, audienceLine(req.AgeGroup), lessonBlock(req))

	var payload quizPayload
	if err := g.client.generateJSON(ctx, generatorInstructions, prompt, &payload); err != nil {
		return domain.Quiz{}, fmt.Errorf("generate quiz: %w", err)
	}

	quiz := domain.Quiz{Title: strings.TrimSpace(payload.Title)}
	for _, q := range payload.Questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			Question:      strings.TrimSpace(q.Question),
			Options:       trimAll(q.Options),
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   strings.TrimSpace(q.Explanation),
			Encouragement: strings.TrimSpace(q.Encouragement),
		})
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, fmt.Errorf("generate quiz: %w", err)
	}
	return quiz, nil
}

// GenerateInfographic renders the lesson as a single illustrated image.
func (g *Generator) GenerateInfographic(ctx context.Context, req session.GenerateRequest) (domain.InfographicBody, error) {
	subject := req.Title
	if subject == "" {
		subject = firstWords(req.Content, 12)
	}
	stylePrompt := fmt.Sprintf(
		"A bright, friendly educational infographic for children about %q. "+
			"Simple labeled illustrations, large shapes, cheerful colors, no dense text.",
		subject)

	img, err := g.client.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         stylePrompt,
		Model:          openai.ImageModel(g.client.imageModel),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return domain.InfographicBody{}, fmt.Errorf("generate infographic: %w", err)
	}
	if len(img.Data) == 0 || img.Data[0].B64JSON == "" {
		return domain.InfographicBody{}, fmt.Errorf("generate infographic: empty image response")
	}

	return domain.InfographicBody{
		Description: fmt.Sprintf("A colorful infographic about %s", subject),
		ImageData:   img.Data[0].B64JSON,
		MimeType:    "image/png",
	}, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
