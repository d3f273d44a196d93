package checkin

import (
	"fmt"
	"strings"
)

// Capture methods: how the admission was recorded at the station.
const (
	MethodQR     = "qr"
	MethodManual = "manual"
	MethodNFC    = "nfc"
)

var allowedMethods = map[string]struct{}{
	MethodQR:     {},
	MethodManual: {},
	MethodNFC:    {},
}

// NormalizeMethod lower-cases and validates a capture method. Empty input
// defaults to qr, the common path for scanned tickets.
func NormalizeMethod(method string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(method))
	if trimmed == "" {
		return MethodQR, nil
	}

	if _, ok := allowedMethods[trimmed]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	return trimmed, nil
}
