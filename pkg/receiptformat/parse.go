package receiptformat

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parse decodes and validates a payload from JSON
func Parse(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse receipt: %w", err)
	}

	if err := Validate(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

// ParseFile reads a payload from disk
func ParseFile(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	return Parse(data)
}

// ToJSON converts a Payload to JSON bytes
func (p *Payload) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
