package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadTableSkipsHeaderRows(t *testing.T) {
	input := "Title row\nid,name,date\n1,Acme,2024-01-10\n\n2,\"Beta, LLC\",2024-02-01\n"
	table, err := ReadTable(strings.NewReader(input), 2)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if len(table.Header) != 3 || table.Header[1] != "name" {
		t.Fatalf("unexpected header: %v", table.Header)
	}
	if len(table.Rows) != 2 || table.Rows[1][1] != "Beta, LLC" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
}

func TestReadTableRaggedRows(t *testing.T) {
	table, err := ReadTable(strings.NewReader("a,b,c\n1\n1,2,3,4\n"), 1)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if len(table.Rows[0]) != 1 || len(table.Rows[1]) != 4 {
		t.Fatalf("expected ragged rows to be kept: %v", table.Rows)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "churn.csv")
	if err := os.WriteFile(path, []byte("id,name\nC1,Acme\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	table, err := FileSource{Path: path, HeaderRows: 1}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0][0] != "C1" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
	if _, err := (FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("id,account\nR1,Acme\nR2,Beta\n"))
	}))
	defer server.Close()

	table, err := HTTPSource{URL: server.URL + "/sheet", HeaderRows: 1}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[1][1] != "Beta" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}

	_, err = HTTPSource{URL: server.URL + "/broken", HeaderRows: 1}.Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}
