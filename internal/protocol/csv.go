package protocol

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVFile is an uploaded CSV file
type CSVFile struct {
	Name string
	Data []byte
}

// CSVStats describes the shape of a CSV file
type CSVStats struct {
	Rows     int // data rows, header excluded
	Columns  int
	Warnings []string
}

// EncodeCSV turns CSV content into text that can be pasted between the double
// quotes of a JSON string held in a Python triple-quoted literal.
// Python reads "\\n" as "\n" and json.loads then yields a newline.
func EncodeCSV(data []byte) string {
	s := normalizeCSV(data)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding a string cannot fail
	_ = enc.Encode(s)

	quoted := strings.TrimSuffix(buf.String(), "\n")
	quoted = quoted[1 : len(quoted)-1]

	return strings.ReplaceAll(quoted, `\`, `\\`)
}

// InspectCSV reports the size of a CSV file and the problems a user should know
// about. It never fails: the content is injected as is.
func InspectCSV(data []byte) CSVStats {
	var stats CSVStats

	s := normalizeCSV(data)
	if strings.TrimSpace(s) == "" {
		stats.Warnings = append(stats.Warnings, "CSV file is empty")
		return stats
	}

	r := csv.NewReader(strings.NewReader(s))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("CSV file could not be parsed: %v", err))
		return stats
	}
	if len(records) == 0 {
		stats.Warnings = append(stats.Warnings, "CSV file is empty")
		return stats
	}

	header := records[0]
	stats.Columns = len(header)
	stats.Rows = len(records) - 1

	if len(header) == 1 && strings.Contains(header[0], ";") {
		stats.Warnings = append(stats.Warnings, "CSV file seems to use ';' separators, save it with ',' separators")
	}

	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			stats.Warnings = append(stats.Warnings,
				fmt.Sprintf("CSV row %d has %d fields, header has %d", i+2, len(rec), len(header)))
			break
		}
	}

	return stats
}

func normalizeCSV(data []byte) string {
	s := string(bytes.TrimPrefix(data, utf8BOM))
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimRight(s, "\n")
}
