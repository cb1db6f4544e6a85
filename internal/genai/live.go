package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/safety"
)

const liveWelcome = "Hi! I'm Ollie! 🦉 I'm so happy you're here. What would you like to learn about today?"

const liveErrorReply = "Oops, my thinking cap slipped! 😅 I couldn't answer that one. " +
	"Could you try asking me again?"

const liveInstructions = "You are Ollie, a warm and patient learning companion for children. " +
	"Answer questions simply and truthfully, encourage curiosity, and never discuss " +
	"frightening or adult topics. Keep answers under 120 words."

var liveSuggestedQuestions = []string{
	"Why is the sky blue?",
	"How do airplanes fly?",
	"What do plants eat?",
	"Where does rain come from?",
}

// LiveBackend is the AI-powered conversation path. It owns the live
// message stream, streams assistant replies token by token, and screens
// user input for safety flags.
type LiveBackend struct {
	client *Client

	// onUpdate observes every committed message, when registered.
	onUpdate func(domain.Message)

	mu          sync.Mutex
	messages    []domain.Message
	isLoading   bool
	isStreaming bool
	safetyFlags []string
	err         error
	lastUser    string
}

// NewLiveBackend builds the live conversation backend.
func NewLiveBackend(client *Client, onUpdate func(domain.Message)) *LiveBackend {
	b := &LiveBackend{client: client, onUpdate: onUpdate}
	b.messages = []domain.Message{b.newMessage(domain.RoleAssistant, liveWelcome)}
	return b
}

// Messages returns a snapshot of the live stream.
func (b *LiveBackend) Messages() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// IsLoading reports whether a reply is being prepared.
func (b *LiveBackend) IsLoading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isLoading
}

// IsStreaming reports whether reply tokens are currently arriving.
func (b *LiveBackend) IsStreaming() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isStreaming
}

// SafetyFlags returns the flags raised by the most recent user message.
func (b *LiveBackend) SafetyFlags() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.safetyFlags))
	copy(out, b.safetyFlags)
	return out
}

// Err returns the last send error, if any.
func (b *LiveBackend) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// SuggestedQuestions returns starter prompts.
func (b *LiveBackend) SuggestedQuestions() []string { return liveSuggestedQuestions }

// WelcomeMessage returns the canned opener.
func (b *LiveBackend) WelcomeMessage() string { return liveWelcome }

// SendMessage screens the input, appends the user turn and streams the
// assistant reply. A failed model call leaves exactly one friendly error
// message; the loading state is always cleared.
func (b *LiveBackend) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	flags := b.screen(ctx, text)

	userMsg := b.newMessage(domain.RoleUser, text)
	userMsg.SafetyFlags = flags

	b.mu.Lock()
	b.messages = append(b.messages, userMsg)
	b.safetyFlags = flags
	b.isLoading = true
	b.err = nil
	b.lastUser = text
	b.mu.Unlock()
	b.notify(userMsg)

	defer func() {
		b.mu.Lock()
		b.isLoading = false
		b.isStreaming = false
		b.mu.Unlock()
	}()

	reply, err := b.streamReply(ctx)
	if err != nil {
		slog.Warn("live reply failed", "error", err)
		errMsg := b.newMessage(domain.RoleAssistant, liveErrorReply)
		errMsg.IsError = true
		b.mu.Lock()
		b.messages = append(b.messages, errMsg)
		b.err = err
		b.mu.Unlock()
		b.notify(errMsg)
		return err
	}

	replyMsg := b.newMessage(domain.RoleAssistant, reply)
	b.mu.Lock()
	b.messages = append(b.messages, replyMsg)
	b.mu.Unlock()
	b.notify(replyMsg)
	return nil
}

// streamReply runs one streamed model round over the conversation so far.
func (b *LiveBackend) streamReply(ctx context.Context) (string, error) {
	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(b.client.model),
		MaxOutputTokens: openai.Int(defaultMaxOutputTokens),
		Instructions:    openai.String(liveInstructions),
		Input: oresponses.ResponseNewParamsInputUnion{
			OfInputItemList: b.historyInput(),
		},
	}

	stream := b.client.api.Responses.NewStreaming(ctx, params)
	var textBuf strings.Builder
	for stream.Next() {
		event := stream.Current()
		if strings.TrimSpace(event.Type) != "response.output_text.delta" {
			continue
		}
		delta := event.Delta.OfString
		if delta == "" {
			continue
		}
		if textBuf.Len() == 0 {
			b.mu.Lock()
			b.isStreaming = true
			b.mu.Unlock()
		}
		textBuf.WriteString(delta)
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("stream reply: %w", err)
	}
	reply := strings.TrimSpace(textBuf.String())
	if reply == "" {
		return "", fmt.Errorf("stream reply: empty model output")
	}
	return reply, nil
}

// historyInput converts the recent conversation into model input,
// excluding error turns.
func (b *LiveBackend) historyInput() oresponses.ResponseInputParam {
	b.mu.Lock()
	defer b.mu.Unlock()

	const historyLimit = 20
	msgs := b.messages
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}

	items := make(oresponses.ResponseInputParam, 0, len(msgs))
	for _, m := range msgs {
		if m.IsError || m.Type() != domain.MessageText {
			continue
		}
		role := oresponses.EasyInputMessageRoleAssistant
		if m.Role == domain.RoleUser {
			role = oresponses.EasyInputMessageRoleUser
		}
		items = append(items, oresponses.ResponseInputItemParamOfMessage(m.Text(), role))
	}
	return items
}

// screen combines the local lexical screen with the moderation endpoint.
// Moderation failures degrade to the local result alone.
func (b *LiveBackend) screen(ctx context.Context, text string) []string {
	flags := safety.Screen(text)

	mod, err := b.client.api.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		slog.Warn("moderation call failed", "error", err)
		return flags
	}
	for _, r := range mod.Results {
		if r.Flagged && !contains(flags, "inappropriate_topic") {
			flags = append(flags, "inappropriate_topic")
		}
	}
	return flags
}

// ClearChat resets the live stream to the welcome message.
func (b *LiveBackend) ClearChat() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = []domain.Message{b.newMessage(domain.RoleAssistant, liveWelcome)}
	b.safetyFlags = nil
	b.err = nil
	b.lastUser = ""
}

// RetryLastMessage re-sends the most recent user turn.
func (b *LiveBackend) RetryLastMessage() {
	b.mu.Lock()
	text := b.lastUser
	b.mu.Unlock()
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := b.SendMessage(ctx, text); err != nil {
		slog.Warn("retry failed", "error", err)
	}
}

// AddMessage appends one externally produced message to the stream.
func (b *LiveBackend) AddMessage(msg domain.Message) {
	b.mu.Lock()
	b.messages = append(b.messages, msg)
	b.mu.Unlock()
	b.notify(msg)
}

// AddMessages appends a batch as one unit.
func (b *LiveBackend) AddMessages(msgs []domain.Message) {
	b.mu.Lock()
	b.messages = append(b.messages, msgs...)
	b.mu.Unlock()
	for _, m := range msgs {
		b.notify(m)
	}
}

func (b *LiveBackend) newMessage(role domain.Role, text string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Timestamp: time.Now(),
		Body:      domain.TextBody{Text: text},
	}
}

func (b *LiveBackend) notify(msg domain.Message) {
	if b.onUpdate != nil {
		b.onUpdate(msg)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
