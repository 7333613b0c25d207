package sourcefile

import "strings"

// Row is one parsed record: lower-cased header -> trimmed value.
type Row map[string]string

// Table is the parsed form of one delimited source file.
type Table struct {
	Headers []string
	Rows    []Row
}

// Parse splits semicolon-delimited text into header-keyed rows.
//
// The splitter is a character state machine rather than encoding/csv
// because real exports contain embedded delimiters inside quoted fields
// together with unmatched quotes, which must degrade to literal content
// instead of failing the file. Rules: ';' separates fields outside
// quotes, '"' toggles quote mode, '""' inside quotes is a literal quote,
// newlines end a record only outside quotes, blank rows are discarded.
func Parse(text string) *Table {
	records := splitRecords(text)
	t := &Table{}
	for _, fields := range records {
		if len(t.Headers) == 0 {
			t.Headers = normalizeHeaders(fields)
			continue
		}
		row := make(Row, len(t.Headers))
		for i, h := range t.Headers {
			if h == "" {
				continue
			}
			if i < len(fields) {
				row[h] = strings.TrimSpace(fields[i])
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// splitRecords runs the state machine over the whole input, producing one
// string slice per non-blank record.
func splitRecords(text string) [][]string {
	var (
		records  [][]string
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)

	runes := []rune(text)
	endField := func() {
		fields = append(fields, cur.String())
		cur.Reset()
	}
	endRecord := func() {
		endField()
		for _, f := range fields {
			if strings.TrimSpace(f) != "" {
				records = append(records, fields)
				break
			}
		}
		fields = nil
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ';' && !inQuotes:
			endField()
		case c == '\n' && !inQuotes:
			endRecord()
		case c == '\r' && !inQuotes:
			// Swallowed; the following '\n' (if any) ends the record.
			if i+1 >= len(runes) || runes[i+1] != '\n' {
				endRecord()
			}
		default:
			cur.WriteRune(c)
		}
	}
	// An unmatched quote at end of input has already been emitted as
	// literal content; flush the last record.
	endRecord()

	return records
}

// normalizeHeaders strips BOM remnants, trims and lower-cases header cells.
func normalizeHeaders(fields []string) []string {
	out := make([]string, len(fields))
	for i, h := range fields {
		h = strings.TrimPrefix(h, "\uFEFF")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}
