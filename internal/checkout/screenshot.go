package checkout

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/ec-order-lifecycle/internal/apperror"
)

// DecodeScreenshot decodes a base64 payment screenshot, optionally given as
// a data URL, and checks that it is an image no larger than maxBytes.
func DecodeScreenshot(payload string, maxBytes int) ([]byte, error) {
	if payload == "" {
		return nil, &apperror.ValidationError{Field: "paymentScreenshot", Reason: "is required"}
	}

	encoded := payload
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(strings.TrimPrefix(payload, "data:"), ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, &apperror.ValidationError{Field: "paymentScreenshot", Reason: "data URL must be base64 encoded"}
		}
		encoded = data
	}

	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+2 {
		return nil, &apperror.ValidationError{Field: "paymentScreenshot", Reason: fmt.Sprintf("must not exceed %d bytes", maxBytes)}
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &apperror.ValidationError{Field: "paymentScreenshot", Reason: "is not valid base64"}
	}
	if maxBytes > 0 && len(raw) > maxBytes {
		return nil, &apperror.ValidationError{Field: "paymentScreenshot", Reason: fmt.Sprintf("must not exceed %d bytes", maxBytes)}
	}
	if contentType := http.DetectContentType(raw); !strings.HasPrefix(contentType, "image/") {
		return nil, &apperror.ValidationError{Field: "paymentScreenshot", Reason: "must be an image"}
	}
	return raw, nil
}
