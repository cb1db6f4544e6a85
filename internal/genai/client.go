// Package genai talks to the OpenAI API: structured learning-content
// generation, the live conversation backend, and input moderation.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"
)

const defaultMaxOutputTokens = 4096

// Config selects models and credentials for the OpenAI client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
}

// Client wraps the OpenAI SDK with the two call shapes this service
// needs: JSON-object generation and streamed conversational text.
type Client struct {
	api        openai.Client
	model      string
	imageModel string
}

// NewClient builds a client. The API key is required; base URL is
// optional and supports OpenAI-compatible gateways.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	imageModel := strings.TrimSpace(cfg.ImageModel)
	if imageModel == "" {
		imageModel = string(openai.ImageModelDallE3)
	}

	return &Client{
		api:        openai.NewClient(opts...),
		model:      model,
		imageModel: imageModel,
	}, nil
}

// generateJSON runs one non-streaming model round constrained to a JSON
// object and unmarshals the result into out.
func (c *Client) generateJSON(ctx context.Context, instructions, prompt string, out any) error {
	obj := oshared.NewResponseFormatJSONObjectParam()
	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(c.model),
		MaxOutputTokens: openai.Int(defaultMaxOutputTokens),
		Instructions:    openai.String(instructions),
		Input: oresponses.ResponseNewParamsInputUnion{
			OfInputItemList: oresponses.ResponseInputParam{
				oresponses.ResponseInputItemParamOfMessage(prompt, oresponses.EasyInputMessageRoleUser),
			},
		},
		Text: oresponses.ResponseTextConfigParam{
			Format: oresponses.ResponseFormatTextConfigUnionParam{OfJSONObject: &obj},
		},
	}

	resp, err := c.api.Responses.New(ctx, params)
	if err != nil {
		return fmt.Errorf("responses call: %w", err)
	}

	text := extractResponseText(*resp)
	if err := decodeJSONObject(text, out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func extractResponseText(resp oresponses.Response) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if strings.TrimSpace(part.Type) != "output_text" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return sb.String()
}

// decodeJSONObject parses a model reply into out, tolerating prose or
// code fences around the object.
func decodeJSONObject(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("response is not a valid json object")
}
