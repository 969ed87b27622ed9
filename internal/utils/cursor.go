package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCursor wraps every decode failure so callers can map it to a
// 400 without inspecting the cause.
var ErrInvalidCursor = errors.New("invalid cursor")

// RequestCursor pages exam and check-up request lists. Both order by
// created_at DESC, id DESC, so one cursor shape serves both tracks.
type RequestCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeRequestCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(RequestCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeRequestCursor(cursor string) (RequestCursor, error) {
	if cursor == "" {
		return RequestCursor{}, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return RequestCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var c RequestCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return RequestCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return RequestCursor{}, ErrInvalidCursor
	}
	return c, nil
}
