package scanning

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidImage is returned when capture input cannot be turned into image bytes
var ErrInvalidImage = errors.New("invalid image data")

// ParseDataURI splits a "data:<mime>;base64,<payload>" string into bytes and MIME type
func ParseDataURI(uri string) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, "", fmt.Errorf("%w: image data is required", ErrInvalidImage)
	}

	header, payload, found := strings.Cut(uri, ",")
	if !found {
		return nil, "", fmt.Errorf("%w: missing data URI separator", ErrInvalidImage)
	}
	if !strings.HasPrefix(strings.ToLower(header), "data:") {
		return nil, "", fmt.Errorf("%w: not a data URI", ErrInvalidImage)
	}

	meta := header[len("data:"):]
	mimeType, params, _ := strings.Cut(meta, ";")
	if !strings.Contains(strings.ToLower(params), "base64") {
		return nil, "", fmt.Errorf("%w: only base64 data URIs are supported", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: decoding base64: %v", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	return data, normalizeMimeType(mimeType), nil
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		return "image/jpeg"
	}
	return mimeType
}

// NewExtractionRequest builds a request from a capture data URI
func NewExtractionRequest(imageData string, history []HistoryLine, modelID, credential string) (*ExtractionRequest, error) {
	data, mimeType, err := ParseDataURI(imageData)
	if err != nil {
		return nil, err
	}
	h := make([]HistoryLine, len(history))
	copy(h, history)
	return &ExtractionRequest{
		Image:      data,
		MimeType:   mimeType,
		History:    h,
		ModelID:    modelID,
		Credential: credential,
	}, nil
}
