package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const defaultImageMIMEType = "image/jpeg"

// EncodeDataURL encodes raw image bytes as a base64 data URL.
func EncodeDataURL(data []byte, mimeType string) string {
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = defaultImageMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeImage decodes a data URL or bare base64 payload into raw bytes and
// its MIME type. Payloads without a data URL header are assumed to be JPEG.
func DecodeImage(encoded string) ([]byte, string, error) {
	mimeType := defaultImageMIMEType
	payload := encoded

	if strings.HasPrefix(encoded, "data:") {
		header, rest, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", fmt.Errorf("data URL has no payload")
		}
		payload = rest
		header = strings.TrimPrefix(header, "data:")
		header = strings.TrimSuffix(header, ";base64")
		if strings.HasPrefix(header, "image/") {
			mimeType = header
		}
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image payload is empty")
	}
	return data, mimeType, nil
}
