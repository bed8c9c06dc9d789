package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned for a malformed or undecodable pagination
// cursor. It is a client error; a bad cursor never silently resets the
// listing to the first page.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

type cursorPayload struct {
	ID int64 `json:"id"`
}

// EncodeCursor produces the opaque cursor for the record id the next page
// starts after
func EncodeCursor(id int64) string {
	data, _ := json.Marshal(cursorPayload{ID: id})
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor decodes an opaque cursor back to a record id
func DecodeCursor(cursor string) (int64, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var payload cursorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if payload.ID <= 0 {
		return 0, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}
	return payload.ID, nil
}
