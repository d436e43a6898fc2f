package loader

import (
	"encoding/json"
	"errors"
)

func decodeJSON(source string, data []byte) (map[string]any, error) {
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}

		var serr *json.SyntaxError
		if errors.As(err, &serr) {
			pe.Line, pe.Column = position(data, serr.Offset)
		}
		return nil, pe
	}
	return settings, nil
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}
