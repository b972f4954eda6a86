package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseSpreadsheet(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"text", "part", "marks"},
		{"Q1", "A", 2},
		{"", "A", 1},
		{"Q2", "B", "bad"},
	})

	result, err := Parse(Spreadsheet(data))
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.Skipped)

	assert.Equal(t, "Q1", result.Records[0].Text)
	assert.Equal(t, "A", result.Records[0].Part)
	assert.Equal(t, 2.0, result.Records[0].Marks)

	assert.Equal(t, "Q2", result.Records[1].Text)
	assert.Equal(t, "B", result.Records[1].Part)
	assert.Equal(t, 1.0, result.Records[1].Marks, "unparseable marks default to 1")
}

func TestParseSpreadsheetBlankPartSkipped(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"text", "part"},
		{"Q1", ""},
		{"nan", "A"},
		{"Q2", "F"},
	})

	result, err := Parse(Spreadsheet(data))
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "Q2", result.Records[0].Text)
}

func TestParseSpreadsheetOptionsAndAnswer(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"text", "part", "options", "correct_answer", "trade", "level"},
		{"Pick one", "A", "red, green, blue", "red", "Infantry", "L2"},
		{"Statement holds", "F", "", "TRUE", "", ""},
		{"From JSON", "B", `["a","b","c"]`, `["a","c"]`, "", ""},
	})

	result, err := Parse(Spreadsheet(data))
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	first := result.Records[0]
	assert.Equal(t, map[string]any{"choices": []any{"red", "green", "blue"}}, first.Options)
	assert.Equal(t, "red", first.CorrectAnswer)
	assert.Equal(t, "Infantry", first.Trade)
	assert.Equal(t, "L2", first.Level)

	second := result.Records[1]
	assert.Nil(t, second.Options)
	assert.Equal(t, true, second.CorrectAnswer)

	third := result.Records[2]
	assert.Equal(t, map[string]any{"choices": []any{"a", "b", "c"}}, third.Options)
	assert.Equal(t, []any{"a", "c"}, third.CorrectAnswer)
}

func TestParseSpreadsheetMissingRequiredColumn(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"text", "marks"},
		{"Q1", 2},
	})

	_, err := Parse(Spreadsheet(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"part"`)
}

func TestParseSpreadsheetNotAWorkbook(t *testing.T) {
	_, err := Parse(Spreadsheet([]byte("definitely not a zip container")))
	assert.Error(t, err)
}

func TestParseStructured(t *testing.T) {
	payload := []byte(`[
		{"text": "Q1", "part": "A", "marks": 2.5, "options": ["x", "y"], "correct_answer": "x", "trade": "Signals"},
		{"text": "Q2", "part": "F", "correct_answer": true}
	]`)

	result, err := Parse(Structured(payload))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, 0, result.Skipped)

	first := result.Records[0]
	assert.Equal(t, 2.5, first.Marks)
	assert.Equal(t, map[string]any{"choices": []any{"x", "y"}}, first.Options)
	assert.Equal(t, "Signals", first.Trade)

	second := result.Records[1]
	assert.Equal(t, 1.0, second.Marks, "absent marks default to 1")
	assert.Equal(t, true, second.CorrectAnswer)
}

func TestParseStructuredMissingFields(t *testing.T) {
	_, err := Parse(Structured([]byte(`[{"text": "Q1", "part": "A"}, {"text": "Q2"}]`)))

	var structErr *StructureError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, 1, structErr.Index)
	assert.Contains(t, structErr.Reason, "part")
}

func TestParseStructuredNotAnArray(t *testing.T) {
	_, err := Parse(Structured([]byte(`{"text": "Q1"}`)))
	assert.Error(t, err)
}

func TestIsSpreadsheet(t *testing.T) {
	workbook := buildWorkbook(t, [][]any{{"text", "part"}})
	assert.True(t, IsSpreadsheet(workbook))
	assert.False(t, IsSpreadsheet([]byte("QBE1 something")))
	assert.False(t, IsSpreadsheet(nil))
}

func TestCoerceOptions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"blank", "", nil},
		{"nan artifact", "NaN", nil},
		{"json object", `{"choices": ["a"]}`, map[string]any{"choices": []any{"a"}}},
		{"json list wrapped", `["a", "b"]`, map[string]any{"choices": []any{"a", "b"}}},
		{"comma list wrapped", "a, b, c", map[string]any{"choices": []any{"a", "b", "c"}}},
		{"pipe list wrapped", "a|b", map[string]any{"choices": []any{"a", "b"}}},
		{"lone scalar stays string", "just one option", "just one option"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceOptions(tt.input))
		})
	}
}

func TestCoerceAnswer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"blank", "", nil},
		{"true lowercase", "true", true},
		{"false mixed case", "False", false},
		{"true uppercase", "TRUE", true},
		{"scalar string", " B ", "B"},
		{"json list", `["A", "C"]`, []any{"A", "C"}},
		{"number", "42", 42.0},
		{"comma list", "A, C", []any{"A", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceAnswer(tt.input))
		})
	}
}
