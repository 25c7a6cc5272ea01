package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-3-flash-preview"
	geminiAPIKeyVar    = "GEMINI_API_KEY"
)

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.50 // $0.50 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 3.00 // $3.00 per 1M output tokens (including thinking)
)

// contentGenerator is the part of genai.Models used by the analyzer.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer uses Google's Gemini API for photo risk analysis.
//
// The API key is read and validated on every call, and a client is built for
// that call only, so a key fixed while the process runs takes effect on the
// next photo.
type GeminiAnalyzer struct {
	apiKey       func() string
	model        string
	newGenerator func(ctx context.Context, apiKey string) (contentGenerator, error)
}

// GeminiOption configures a GeminiAnalyzer.
type GeminiOption func(*GeminiAnalyzer)

// WithGeminiModel overrides the model name. Empty keeps the default.
func WithGeminiModel(model string) GeminiOption {
	return func(g *GeminiAnalyzer) {
		if model != "" {
			g.model = model
		}
	}
}

// WithGeminiAPIKey sets where the API key is read from on each call.
func WithGeminiAPIKey(apiKey func() string) GeminiOption {
	return func(g *GeminiAnalyzer) {
		g.apiKey = apiKey
	}
}

// NewGeminiAnalyzer creates a new Gemini-based analyzer.
// By default it reads the GEMINI_API_KEY environment variable.
func NewGeminiAnalyzer(opts ...GeminiOption) *GeminiAnalyzer {
	g := &GeminiAnalyzer{
		apiKey:       func() string { return os.Getenv(geminiAPIKeyVar) },
		model:        defaultGeminiModel,
		newGenerator: newGenAIGenerator,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newGenAIGenerator(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client.Models, nil
}

// Model returns the model name used for requests.
func (g *GeminiAnalyzer) Model() string {
	return g.model
}

// Analyze implements the Analyzer interface using Gemini structured output.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, encodedImage string) (*AnalysisResult, error) {
	apiKey := g.apiKey()
	if err := ValidateAPIKey(geminiAPIKeyVar, apiKey); err != nil {
		return nil, err
	}

	imageData, mimeType, err := DecodeImage(encodedImage)
	if err != nil {
		return nil, err
	}

	generator, err := g.newGenerator(ctx, apiKey)
	if err != nil {
		return nil, &ConfigurationError{Setting: geminiAPIKeyVar, Reason: err.Error()}
	}

	parts := []*genai.Part{
		genai.NewPartFromText(analyzePrompt),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := generator.GenerateContent(ctx, g.model, contents, geminiRequestConfig())
	if err != nil {
		return nil, &RemoteError{Provider: "gemini", Err: err}
	}

	usage := geminiUsage(result)
	log.Info().
		Str("model", g.model).
		Int("imageBytes", len(imageData)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, &ResponseFormatError{Err: fmt.Errorf("no response from Gemini")}
	}

	return parseAnalysisResult(result.Text())
}

func geminiRequestConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiReportSchema(),
	}
}

func geminiReportSchema() *genai.Schema {
	stringList := func(field string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: fieldDescriptions[field],
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			fieldRiskLevel: {
				Type:        genai.TypeString,
				Enum:        riskLevelValues(),
				Description: fieldDescriptions[fieldRiskLevel],
			},
			fieldRiskSpots: stringList(fieldRiskSpots),
			fieldScripts:   stringList(fieldScripts),
			fieldExcuses:   stringList(fieldExcuses),
			fieldSummary: {
				Type:        genai.TypeString,
				Description: fieldDescriptions[fieldSummary],
			},
			fieldActionNeeded: {
				Type:        genai.TypeString,
				Enum:        actionValues(),
				Description: fieldDescriptions[fieldActionNeeded],
			},
		},
		Required:         reportFields,
		PropertyOrdering: reportFields,
	}
}

func geminiUsage(result *genai.GenerateContentResponse) Usage {
	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}
	return usage
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
