package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Default Cohere models.
const (
	DefaultModel       = "command-a-03-2025"
	DefaultVisionModel = "command-a-vision-07-2025"
)

// CohereConfig configures the Cohere Chat v2 provider.
type CohereConfig struct {
	APIKey      string
	Model       string
	VisionModel string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Cohere implements Provider with the Cohere Chat v2 API and JSON-schema response format.
type Cohere struct {
	client      *cohereclient.Client
	model       string
	visionModel string
}

var _ Provider = (*Cohere)(nil)

// NewCohere builds the provider. A missing key yields ErrNoCredential so callers can run without enrichment.
func NewCohere(cfg CohereConfig) (*Cohere, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoCredential
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(cfg.APIKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return &Cohere{client: client, model: cfg.Model, visionModel: cfg.VisionModel}, nil
}

// Generate sends one user turn and returns the concatenated text of the reply.
func (c *Cohere) Generate(ctx context.Context, req Request) (string, error) {
	model := c.model
	if len(req.Images) > 0 {
		model = c.visionModel
	}
	temperature := req.Temperature
	chatReq := &cohere.V2ChatRequest{
		Model: model,
		Messages: cohere.ChatMessages{
			{
				Role: "user",
				User: &cohere.UserMessageV2{Content: &cohere.UserMessageV2Content{ContentList: buildContent(req)}},
			},
		},
		Temperature: &temperature,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &cohere.ResponseFormatV2{
			Type:       "json_object",
			JsonObject: &cohere.JsonResponseFormatV2{JsonSchema: req.Schema},
		}
	}

	resp, err := c.client.V2.Chat(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("cohere chat: %w", err)
	}
	if resp == nil || resp.Message == nil {
		return "", errors.New("cohere chat returned empty response")
	}
	raw, err := json.Marshal(resp.Message)
	if err != nil {
		return "", fmt.Errorf("encode cohere message: %w", err)
	}
	return messageText(raw)
}

func buildContent(req Request) []*cohere.Content {
	content := []*cohere.Content{{Type: "text", Text: &cohere.ChatTextContent{Text: req.Prompt}}}
	for _, img := range req.Images {
		content = append(content, &cohere.Content{
			Type: "image_url",
			ImageUrl: &cohere.ImageContent{
				ImageUrl: &cohere.ImageUrl{Url: dataURL(img.MIMEType, img.Base64)},
			},
		})
	}
	return content
}

func dataURL(mimeType, b64 string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + b64
}

// messageText pulls the text items out of an encoded assistant message.
func messageText(raw []byte) (string, error) {
	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("decode cohere message: %w", err)
	}
	var b strings.Builder
	for _, item := range msg.Content {
		if item.Type == "text" {
			b.WriteString(item.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("cohere chat returned no text content")
	}
	return b.String(), nil
}
