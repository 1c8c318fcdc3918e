package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as JSON. Compact output writes one object per
// line, which is what streaming commands such as listen emit.
type JSONFormatter struct {
	Compact bool
}

// Format writes data followed by a newline.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if !f.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}
