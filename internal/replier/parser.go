package replier

import (
	"bytes"
	"encoding/json"
	"strings"
)

type generation struct {
	GeneratedText string `json:"generated_text"`
}

type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// ParseGenerated extracts the reply from an inference response. An error field maps to
// FallbackUnavailable and an empty result to FallbackEmpty; undecodable bodies return an error.
func ParseGenerated(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e errorBody
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return "", err
		}
		if len(e.Error) > 0 && string(e.Error) != "null" {
			return FallbackUnavailable, nil
		}
		var single generation
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return "", err
		}
		return orEmpty(single.GeneratedText), nil
	}

	var batch []generation
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return "", err
	}
	if len(batch) == 0 {
		return FallbackEmpty, nil
	}
	return orEmpty(batch[0].GeneratedText), nil
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return FallbackEmpty
	}
	return strings.TrimSpace(s)
}
