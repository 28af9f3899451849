package neostore

import "encoding/json"

// Neo4j node properties cannot hold nested maps, so arbitrary metadata is
// carried as a JSON string property and decoded on read.

func mustMarshalMetadata(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func mustUnmarshalMetadata(s string) map[string]any {
	if s == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]any{}
	}
	return m
}
