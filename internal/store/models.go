package store

import (
	"encoding/json"
	"fmt"

	"github.com/kk2215/okan-ai/internal/domain"
)

// JSON column helpers. Garbage days, scratch candidates and line choices
// are small per-user blobs; a serialized column keeps the schema flat.

func marshalColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column: %w", err)
	}
	return string(b), nil
}

func unmarshalGarbage(s string) (map[int]string, error) {
	m := map[int]string{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("garbage_days column: %w", err)
	}
	return m, nil
}

func unmarshalScratch(s string) ([]domain.Candidate, error) {
	var c []domain.Candidate
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("scratch column: %w", err)
	}
	return c, nil
}

func unmarshalStrings(s string) ([]string, error) {
	var out []string
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("string list column: %w", err)
	}
	return out, nil
}
