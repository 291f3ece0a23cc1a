package task

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed defaults.json
var defaultsJSON []byte

// DefaultDefinitions returns the bundled task set used to seed an empty
// store on first run.
func DefaultDefinitions() ([]Definition, error) {
	var defs []Definition
	if err := json.Unmarshal(defaultsJSON, &defs); err != nil {
		return nil, fmt.Errorf("parse bundled tasks: %w", err)
	}
	return defs, nil
}
