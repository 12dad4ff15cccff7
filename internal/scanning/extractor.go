package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Extractor runs the full pipeline for one capture: prompt, model call under
// the retry policy, fence stripping and tolerant decoding.
type Extractor struct {
	model          Model
	policy         RetryPolicy
	attemptTimeout time.Duration
}

// NewExtractor creates an Extractor. A zero attemptTimeout leaves each call
// bounded only by the caller's context.
func NewExtractor(model Model, policy RetryPolicy, attemptTimeout time.Duration) *Extractor {
	return &Extractor{
		model:          model,
		policy:         policy,
		attemptTimeout: attemptTimeout,
	}
}

// Extract returns a decoded receipt or one of *ConfigurationError,
// *ContentPolicyBlock, *InferenceError, *DecodeFailure, or a context error.
func (e *Extractor) Extract(ctx context.Context, req *ExtractionRequest) (*DecodedReceipt, error) {
	if req.Credential == "" && requiresCredential(e.model) {
		return nil, &ConfigurationError{Message: "API key is not set"}
	}

	image, mimeType, err := prepareImage(req.Image, req.MimeType)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}
	prepared := *req
	prepared.Image = image
	prepared.MimeType = mimeType

	prompt := BuildPrompt(req.History)

	raw, err := Invoke(ctx, e.policy, func(ctx context.Context) (string, error) {
		if e.attemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
			defer cancel()
		}
		return e.model.Generate(ctx, &prepared, prompt)
	})
	if err != nil {
		slog.Error("Model call failed",
			"model", req.ModelID,
			"mime_type", mimeType,
			"image_size", len(image),
			"error", err,
		)
		return nil, err
	}
	slog.Debug("Raw model response", "text", raw)

	receipt, err := Decode(Sanitize(raw))
	if err != nil {
		slog.Warn("Could not decode model response", "error", err)
		return nil, err
	}

	slog.Info("Decoded receipt",
		"tier", receipt.Tier.String(),
		"vendor", receipt.Vendor,
		"items", len(receipt.Items),
	)
	return receipt, nil
}

// Close closes the underlying model
func (e *Extractor) Close() error {
	return e.model.Close()
}
