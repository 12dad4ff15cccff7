package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	googlegenai "google.golang.org/genai"
)

// GenAI implements Model using the unified google.golang.org/genai SDK
type GenAI struct {
	defaultModel string
	httpOptions  googlegenai.HTTPOptions
}

// NewGenAI creates a GenAI backend. baseURL overrides the API endpoint when set.
func NewGenAI(defaultModel, baseURL string) *GenAI {
	if defaultModel == "" {
		defaultModel = DefaultGeminiModel
	}
	return &GenAI{
		defaultModel: defaultModel,
		httpOptions:  googlegenai.HTTPOptions{BaseURL: baseURL},
	}
}

func genaiSafetySettings() []*googlegenai.SafetySetting {
	categories := []googlegenai.HarmCategory{
		googlegenai.HarmCategoryHarassment,
		googlegenai.HarmCategoryHateSpeech,
		googlegenai.HarmCategorySexuallyExplicit,
		googlegenai.HarmCategoryDangerousContent,
	}
	settings := make([]*googlegenai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &googlegenai.SafetySetting{
			Category:  c,
			Threshold: googlegenai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return settings
}

// Generate sends the prompt and image through the genai Models service
func (g *GenAI) Generate(ctx context.Context, req *ExtractionRequest, prompt string) (string, error) {
	if req.Credential == "" {
		return "", &ConfigurationError{Message: "gemini api key is required"}
	}

	client, err := googlegenai.NewClient(ctx, &googlegenai.ClientConfig{
		APIKey:      req.Credential,
		Backend:     googlegenai.BackendGeminiAPI,
		HTTPOptions: g.httpOptions,
	})
	if err != nil {
		return "", Permanent(fmt.Errorf("creating genai client: %w", err))
	}

	modelName := req.ModelID
	if modelName == "" {
		modelName = g.defaultModel
	}

	contents := []*googlegenai.Content{
		googlegenai.NewContentFromParts([]*googlegenai.Part{
			googlegenai.NewPartFromText(prompt),
			googlegenai.NewPartFromBytes(req.Image, req.MimeType),
		}, googlegenai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, contents, &googlegenai.GenerateContentConfig{
		SafetySettings: genaiSafetySettings(),
	})
	if err != nil {
		return "", classifyGenAIError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &ContentPolicyBlock{Reason: string(resp.PromptFeedback.BlockReason)}
	}
	if len(resp.Candidates) > 0 {
		switch reason := resp.Candidates[0].FinishReason; reason {
		case googlegenai.FinishReasonSafety, googlegenai.FinishReasonProhibitedContent, googlegenai.FinishReasonBlocklist:
			return "", &ContentPolicyBlock{Reason: string(reason)}
		}
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from genai")
	}
	return text, nil
}

func classifyGenAIError(err error) error {
	wrapped := fmt.Errorf("generating content: %w", err)

	var apiErr googlegenai.APIError
	if !errors.As(err, &apiErr) {
		return wrapped
	}
	code := apiErr.Code
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
		return Permanent(wrapped)
	}
	return wrapped
}

// Close is a no-op; the genai client holds no resources between calls
func (g *GenAI) Close() error {
	return nil
}
