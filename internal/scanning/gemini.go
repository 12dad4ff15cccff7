package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// DefaultGeminiModel is used when a request names no model
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini implements Model using the Google Generative AI SDK.
// A client is created per call because the credential travels with the request.
type Gemini struct {
	defaultModel string
	opts         []option.ClientOption
}

// NewGemini creates a Gemini backend. Extra client options are appended after the API key.
func NewGemini(defaultModel string, opts ...option.ClientOption) *Gemini {
	if defaultModel == "" {
		defaultModel = DefaultGeminiModel
	}
	return &Gemini{
		defaultModel: defaultModel,
		opts:         opts,
	}
}

// geminiSafetySettings blocks medium and above in every category
func geminiSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockMediumAndAbove,
		})
	}
	return settings
}

// Generate sends the prompt and image to Gemini and returns the text answer
func (g *Gemini) Generate(ctx context.Context, req *ExtractionRequest, prompt string) (string, error) {
	if req.Credential == "" {
		return "", &ConfigurationError{Message: "gemini api key is required"}
	}

	opts := append([]option.ClientOption{option.WithAPIKey(req.Credential)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", Permanent(fmt.Errorf("creating gemini client: %w", err))
	}
	defer client.Close()

	modelName := req.ModelID
	if modelName == "" {
		modelName = g.defaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SafetySettings = geminiSafetySettings()

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: req.MimeType, Data: req.Image},
	)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// classifyGeminiError separates policy blocks and request errors from transient faults
func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ContentPolicyBlock{Reason: blockedReason(blocked), Err: err}
	}

	wrapped := fmt.Errorf("generating content: %w", err)
	if apiErr, ok := apierror.FromError(err); ok {
		switch apiErr.HTTPCode() {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return Permanent(wrapped)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
				return Permanent(wrapped)
			}
		}
	}
	return wrapped
}

func blockedReason(b *genai.BlockedError) string {
	if b.PromptFeedback != nil {
		return b.PromptFeedback.BlockReason.String()
	}
	if b.Candidate != nil {
		return b.Candidate.FinishReason.String()
	}
	return ""
}

// Close is a no-op; clients are closed after each call
func (g *Gemini) Close() error {
	return nil
}
