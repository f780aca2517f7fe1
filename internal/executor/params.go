package executor

import (
	"encoding/json"
	"fmt"
)

func decodeParams(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid command params: %w", err)
	}
	return nil
}
