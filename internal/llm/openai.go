package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	openAIAPIKeyVar    = "OPENAI_API_KEY"
)

// OpenAI pricing for gpt-4o-mini (per million tokens)
const (
	openAIInputPricePerMillion  = 0.15
	openAIOutputPricePerMillion = 0.60
)

// OpenAIAnalyzer runs the same analysis against OpenAI chat completions with a
// strict JSON schema response format.
type OpenAIAnalyzer struct {
	apiKey  func() string
	model   string
	baseURL string
}

// OpenAIOption configures an OpenAIAnalyzer.
type OpenAIOption func(*OpenAIAnalyzer)

// WithOpenAIModel overrides the model name. Empty keeps the default.
func WithOpenAIModel(model string) OpenAIOption {
	return func(a *OpenAIAnalyzer) {
		if model != "" {
			a.model = model
		}
	}
}

// WithOpenAIAPIKey sets where the API key is read from on each call.
func WithOpenAIAPIKey(apiKey func() string) OpenAIOption {
	return func(a *OpenAIAnalyzer) {
		a.apiKey = apiKey
	}
}

// WithOpenAIBaseURL points the client at a different API root, e.g. a proxy.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(a *OpenAIAnalyzer) {
		a.baseURL = baseURL
	}
}

// NewOpenAIAnalyzer creates an analyzer that reads OPENAI_API_KEY by default.
func NewOpenAIAnalyzer(opts ...OpenAIOption) *OpenAIAnalyzer {
	a := &OpenAIAnalyzer{
		apiKey: func() string { return os.Getenv(openAIAPIKeyVar) },
		model:  defaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Model returns the model name used for requests.
func (a *OpenAIAnalyzer) Model() string {
	return a.model
}

// Analyze implements the Analyzer interface.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, encodedImage string) (*AnalysisResult, error) {
	apiKey := a.apiKey()
	if err := ValidateAPIKey(openAIAPIKeyVar, apiKey); err != nil {
		return nil, err
	}

	imageData, mimeType, err := DecodeImage(encodedImage)
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig(apiKey)
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analyzePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    EncodeDataURL(imageData, mimeType),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "relationship_risk_report",
				Schema: openAIReportSchema(),
				Strict: true,
			},
		},
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			log.Warn().Int("status", apiErr.HTTPStatusCode).Str("code", fmt.Sprint(apiErr.Code)).Msg("openai rejected request")
		}
		return nil, &RemoteError{Provider: "openai", Err: err}
	}

	usage := Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		TotalTokens:  int64(resp.Usage.TotalTokens),
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, openAIInputPricePerMillion, openAIOutputPricePerMillion)

	log.Info().
		Str("model", a.model).
		Int("imageBytes", len(imageData)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	if len(resp.Choices) == 0 {
		return nil, &ResponseFormatError{Err: fmt.Errorf("no choices in OpenAI response")}
	}

	return parseAnalysisResult(resp.Choices[0].Message.Content)
}

func openAIReportSchema() *jsonschema.Definition {
	stringList := func(field string) jsonschema.Definition {
		return jsonschema.Definition{
			Type:        jsonschema.Array,
			Items:       &jsonschema.Definition{Type: jsonschema.String},
			Description: fieldDescriptions[field],
		}
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			fieldRiskLevel: {
				Type:        jsonschema.String,
				Enum:        riskLevelValues(),
				Description: fieldDescriptions[fieldRiskLevel],
			},
			fieldRiskSpots: stringList(fieldRiskSpots),
			fieldScripts:   stringList(fieldScripts),
			fieldExcuses:   stringList(fieldExcuses),
			fieldSummary: {
				Type:        jsonschema.String,
				Description: fieldDescriptions[fieldSummary],
			},
			fieldActionNeeded: {
				Type:        jsonschema.String,
				Enum:        actionValues(),
				Description: fieldDescriptions[fieldActionNeeded],
			},
		},
		Required:             reportFields,
		AdditionalProperties: false,
	}
}
