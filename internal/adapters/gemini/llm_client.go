package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the FallbackClassifier interface using Google Gemini
type GeminiClient struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	modelName    string
	maxTokens    int
	temperature  float32
	topP         float32
	maxBodySize  int
	logger       *zap.Logger
	promptFormat string
}

// DocTypeResponse represents the structured response from the LLM
type DocTypeResponse struct {
	DocType    string `json:"doc_type"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:      client,
		model:       model,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		maxBodySize: maxBodySize,
		logger:      logger,
		promptFormat: `You are a freight forwarding document classifier. Identify the type of shipping document in the following email.
Respond with a JSON object containing:
- doc_type: string, one of: %s
- confidence: integer between 0 and 100 (how confident you are in the classification)
- reasoning: string (brief explanation of the classification)

Email:
From: %s
Subject: %s
Attachments: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// truncateBody truncates the email body if it exceeds the maximum size
func (c *GeminiClient) truncateBody(body string) string {
	if c.maxBodySize <= 0 || len(body) <= c.maxBodySize {
		return body
	}

	truncated := body[:c.maxBodySize]
	c.logger.Debug("Email body truncated",
		zap.Int("original_size", len(body)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", c.maxBodySize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// ClassifyDocument asks the model to identify the document type of a message
func (c *GeminiClient) ClassifyDocument(ctx context.Context, msg *core.Message) (*core.FallbackResult, error) {
	prompt := fmt.Sprintf(c.promptFormat,
		docTypeList(),
		msg.EffectiveSender(),
		msg.Subject,
		strings.Join(msg.AttachmentNames, ", "),
		c.truncateBody(msg.Body))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	parsed, err := parseDocTypeResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.FallbackResult{
		DocType:    parsed.DocType,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}, nil
}

// docTypeList renders the closed vocabulary for the prompt.
func docTypeList() string {
	names := make([]string, 0, len(core.AllDocumentTypes))
	for _, t := range core.AllDocumentTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// parseDocTypeResponse parses the LLM's JSON response, extracting the
// object from surrounding prose when the model adds any.
func parseDocTypeResponse(responseText string) (*DocTypeResponse, error) {
	var parsed DocTypeResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		jsonStart := 0
		jsonEnd := len(responseText)

		for i := 0; i < len(responseText); i++ {
			if responseText[i] == '{' {
				jsonStart = i
				break
			}
		}

		for i := len(responseText) - 1; i >= 0; i-- {
			if responseText[i] == '}' {
				jsonEnd = i + 1
				break
			}
		}

		if jsonStart < jsonEnd {
			jsonStr := responseText[jsonStart:jsonEnd]
			if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
				return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
	}
	return &parsed, nil
}
