package application

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	payment "payment-gateway/internal/payment/domain"
)

// EncodeCursor renders a keyset position as an opaque token.
func EncodeCursor(pos payment.CursorPosition) string {
	raw := strconv.FormatInt(pos.CreatedAt.UnixMilli(), 10) + ":" + strconv.FormatInt(pos.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token from EncodeCursor. Any malformed token is
// reported as !ok and the caller starts from the first page.
func DecodeCursor(token string) (payment.CursorPosition, bool) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return payment.CursorPosition{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return payment.CursorPosition{}, false
	}
	millisPart, idPart, found := strings.Cut(string(raw), ":")
	if !found {
		return payment.CursorPosition{}, false
	}
	millis, err := strconv.ParseInt(millisPart, 10, 64)
	if err != nil {
		return payment.CursorPosition{}, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return payment.CursorPosition{}, false
	}
	return payment.CursorPosition{CreatedAt: time.UnixMilli(millis).UTC(), ID: id}, true
}
