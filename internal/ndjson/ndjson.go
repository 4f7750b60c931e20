// Package ndjson reads newline-delimited JSON audit files and provides
// row-level helpers shared by the diff engine.
package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineSize caps a single NDJSON line; audit output can carry large rows.
const maxLineSize = 1024 * 1024

// Row is one NDJSON row decoded as a loose map.
type Row map[string]any

// ReadFile reads all rows from an NDJSON file. Blank lines are skipped.
// Malformed JSON or a non-object row is fatal and reported with its line number.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Read reads all rows from r. Blank lines are skipped; anything that is not
// a JSON object fails with the offending line number.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row Row
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			msg := err.Error()
			if idx := strings.Index(msg, "\n"); idx >= 0 {
				msg = msg[:idx]
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %s", lineNo, msg)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return rows, nil
}

// Marshal renders rows back to NDJSON bytes, one object per line.
func Marshal(rows []Row) ([]byte, error) {
	var buf strings.Builder
	for _, row := range rows {
		data, err := json.Marshal(map[string]any(row))
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteString("\n")
	}
	return []byte(buf.String()), nil
}

// GroupByType indexes rows by their "type" field. When a type appears more
// than once the last row wins (later rows are the most complete).
func GroupByType(rows []Row) map[string]Row {
	byType := make(map[string]Row)
	for _, row := range rows {
		if t, ok := row["type"].(string); ok && t != "" {
			byType[t] = row
		}
	}
	return byType
}

// WarningCodes collects the unique warning identifiers from all warning rows.
// A warning row names its code directly, or carries a soft_failures marker.
func WarningCodes(rows []Row) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, row := range rows {
		if t, _ := row["type"].(string); t != "warning" {
			continue
		}
		if c, ok := row["code"].(string); ok {
			codes[c] = struct{}{}
		} else if _, ok := row["soft_failures"]; ok {
			codes["soft_failures"] = struct{}{}
		}
	}
	return codes
}

// Int coerces a JSON-decoded numeric value to int. Non-numbers yield 0.
func Int(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

// Float coerces a JSON-decoded numeric value to float64. Non-numbers yield 0.
func Float(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}

// Bool coerces a JSON-decoded value to bool. Numbers are truthy when nonzero.
func Bool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return false
	}
}
