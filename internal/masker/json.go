package masker

import (
	"encoding/json"
	"strings"
)

func stableMarshal(v map[string]any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalMap(doc string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func replaceAll(s, old, new string) string {
	return strings.ReplaceAll(s, old, new)
}
