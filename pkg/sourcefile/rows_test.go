package sourcefile

import "testing"

func TestParse(t *testing.T) {
	text := "ID;LastName;FirstName\r\n" +
		"1;Rossi;Mario\r\n" +
		"2;\"Rossi; Maria \"\"Junior\"\"\";Maria\r\n" +
		"3;\"De\nSanctis\";Luca\r\n" +
		";;\r\n" +
		"4;Bianchi;Anna"

	table := Parse(text)

	wantHeaders := []string{"id", "lastname", "firstname"}
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", table.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, table.Headers[i], h)
		}
	}

	if len(table.Rows) != 4 {
		t.Fatalf("got %d rows, want 4 (blank row discarded)", len(table.Rows))
	}

	cases := []struct {
		row  int
		col  string
		want string
	}{
		{0, "lastname", "Rossi"},
		{1, "lastname", `Rossi; Maria "Junior"`},
		{1, "firstname", "Maria"},
		{2, "lastname", "De\nSanctis"},
		{3, "id", "4"},
		{3, "lastname", "Bianchi"},
	}
	for _, c := range cases {
		if got := table.Rows[c.row][c.col]; got != c.want {
			t.Errorf("row %d col %q = %q, want %q", c.row, c.col, got, c.want)
		}
	}
}

func TestParseShortRecord(t *testing.T) {
	table := Parse("a;b;c\n1;2\n")
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}
	if got := table.Rows[0]["c"]; got != "" {
		t.Errorf("missing trailing field = %q, want empty", got)
	}
}

// An unmatched quote must degrade to literal content for the rest of the
// input instead of failing the whole file.
func TestParseUnmatchedQuote(t *testing.T) {
	table := Parse("a;b\n1;\"broken\n")
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}
	if got := table.Rows[0]["b"]; got != "broken" {
		t.Errorf("field b = %q, want %q", got, "broken")
	}
}

func TestParseBOMHeader(t *testing.T) {
	table := Parse("\uFEFFid;name\n1;x\n")
	if len(table.Headers) == 0 || table.Headers[0] != "id" {
		t.Errorf("headers = %v, want BOM stripped from first header", table.Headers)
	}
}
