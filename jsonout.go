package main

import (
	"encoding/json"
	"os"
)

// writeJSON renders v with 2-space indentation and without HTML
// escaping, so control-tag markers like <Tag> survive verbatim.
func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
