package report

import (
	"encoding/json"
	"io"
	"strings"
)

// WriteJSON encodes doc with indent spaces per level (0 for compact).
func WriteJSON(w io.Writer, doc *Document, indent int) error {
	enc := json.NewEncoder(w)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	return enc.Encode(doc)
}
