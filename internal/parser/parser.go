// Package parser decodes decrypted question-bank payloads into raw question
// records. It is deliberately tolerant: a bad row degrades to a skip or a
// row-level error, never an aborted batch. Only structural problems (missing
// required columns, malformed structured payloads) fail the whole parse.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SourceKind declares how a decrypted payload should be decoded.
type SourceKind string

const (
	// SourceSpreadsheet is a workbook (xlsx) with one header row.
	SourceSpreadsheet SourceKind = "spreadsheet"
	// SourceStructured is a JSON array of record objects produced by a
	// trusted upstream exporter.
	SourceStructured SourceKind = "structured"
)

// Source is the tagged input variant handed to Parse.
type Source struct {
	Kind SourceKind
	Data []byte
}

// Spreadsheet wraps workbook bytes as a parse source.
func Spreadsheet(data []byte) Source {
	return Source{Kind: SourceSpreadsheet, Data: data}
}

// Structured wraps a JSON record array as a parse source.
func Structured(data []byte) Source {
	return Source{Kind: SourceStructured, Data: data}
}

// zipSignature starts every xlsx container. Checked before excelize touches
// the payload so a wrong-password decrypt that slipped past authentication
// surfaces as a clear error.
var zipSignature = []byte("PK")

// IsSpreadsheet reports whether data carries the xlsx container signature.
func IsSpreadsheet(data []byte) bool {
	return bytes.HasPrefix(data, zipSignature)
}

// StructureError reports a structured-input element that is not a usable
// record. It names the offending element so the uploader can fix the export.
type StructureError struct {
	Index  int
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("structured record %d: %s", e.Index, e.Reason)
}

// RawRecord is one parsed question row before reference resolution and
// persistence. Reference fields hold free-text labels, not IDs.
type RawRecord struct {
	Text          string
	Part          string
	Marks         float64
	Options       any
	CorrectAnswer any

	Trade    string
	Level    string
	Skill    string
	QF       string
	Category string
}

// Result is the outcome of one parse: the usable records plus the number of
// rows dropped for missing required fields.
type Result struct {
	Records []RawRecord
	Skipped int
}

// Parse decodes a payload according to its declared kind.
func Parse(src Source) (*Result, error) {
	switch src.Kind {
	case SourceSpreadsheet:
		return parseSpreadsheet(src.Data)
	case SourceStructured:
		return parseStructured(src.Data)
	default:
		return nil, fmt.Errorf("unsupported source kind: %q", src.Kind)
	}
}

func parseSpreadsheet(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("workbook sheet %q is empty", sheets[0])
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{"text", "part"} {
		if _, ok := headerMap[required]; !ok {
			return nil, fmt.Errorf("workbook is missing required column %q", required)
		}
	}

	result := &Result{}
	for _, row := range rows[1:] {
		cell := func(name string) string {
			if idx, ok := headerMap[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		text := cell("text")
		part := cell("part")
		if isBlank(text) || isBlank(part) {
			result.Skipped++
			continue
		}

		result.Records = append(result.Records, RawRecord{
			Text:          text,
			Part:          part,
			Marks:         parseMarks(cell("marks")),
			Options:       CoerceOptions(cell("options")),
			CorrectAnswer: CoerceAnswer(cell("correct_answer")),
			Trade:         cell("trade"),
			Level:         cell("level"),
			Skill:         cell("skill"),
			QF:            cell("qf"),
			Category:      cell("category"),
		})
	}

	return result, nil
}

// structuredRecord mirrors the JSON shape emitted by the upstream exporter.
// Options and correct_answer arrive pre-structured and pass through as-is.
type structuredRecord struct {
	Text          string          `json:"text"`
	Part          string          `json:"part"`
	Marks         json.RawMessage `json:"marks"`
	Options       any             `json:"options"`
	CorrectAnswer any             `json:"correct_answer"`
	Trade         string          `json:"trade"`
	Level         string          `json:"level"`
	Skill         string          `json:"skill"`
	QF            string          `json:"qf"`
	Category      string          `json:"category"`
}

func parseStructured(data []byte) (*Result, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("structured payload is not a record array: %w", err)
	}

	result := &Result{}
	for i, element := range elements {
		var rec structuredRecord
		if err := json.Unmarshal(element, &rec); err != nil {
			return nil, &StructureError{Index: i, Reason: "element is not a record object"}
		}
		if isBlank(rec.Text) {
			return nil, &StructureError{Index: i, Reason: "missing required field \"text\""}
		}
		if isBlank(rec.Part) {
			return nil, &StructureError{Index: i, Reason: "missing required field \"part\""}
		}

		result.Records = append(result.Records, RawRecord{
			Text:          strings.TrimSpace(rec.Text),
			Part:          strings.TrimSpace(rec.Part),
			Marks:         parseMarks(string(rec.Marks)),
			Options:       normalizeStructured(rec.Options),
			CorrectAnswer: rec.CorrectAnswer,
			Trade:         rec.Trade,
			Level:         rec.Level,
			Skill:         rec.Skill,
			QF:            rec.QF,
			Category:      rec.Category,
		})
	}

	return result, nil
}

// normalizeStructured applies the same bare-list wrapping the spreadsheet
// path does, so both sources store options in one shape.
func normalizeStructured(options any) any {
	if list, ok := options.([]any); ok {
		return map[string]any{"choices": list}
	}
	return options
}

// parseMarks reads a marks cell, defaulting to 1 on anything unusable.
func parseMarks(raw string) float64 {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	if s == "" || s == "null" {
		return 1
	}
	marks, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1
	}
	return marks
}

func isBlank(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || strings.EqualFold(trimmed, "nan")
}
