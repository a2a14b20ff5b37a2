package transform

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a descriptor for the worker boundary.
func Encode(t *DataFrameTransform) ([]byte, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	return json.Marshal(t)
}

func Decode(data []byte) (*DataFrameTransform, error) {
	var head struct {
		Version uint32 `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("unable to decode transform header: %w", err)
	}
	if head.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head.Version)
	}

	t := &DataFrameTransform{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("unable to decode transform: %w", err)
	}
	return t, Validate(t)
}
