// File: internal/results/writer.go
package results

import (
	"bytes"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Write serializes the records as 2-space indented UTF-8 JSON and overwrites
// path. HTML escaping is disabled so account names and URLs stay literal.
func Write(path string, records []Result) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write results file %q: %w", path, err)
	}
	return nil
}
