// Package sheets reads the churn and reactivation sheets as raw CSV tables.
package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultFetchTimeout = 20 * time.Second

// Table is a sheet as read: header row plus data rows, cells untouched.
type Table struct {
	Header []string
	Rows   [][]string
}

type Source interface {
	Fetch(ctx context.Context) (Table, error)
	Name() string
}

// ReadTable consumes a CSV stream. The first headerRows rows are treated as
// headers; only the last of them is kept.
func ReadTable(r io.Reader, headerRows int) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var table Table
	for i := 0; i < headerRows; i++ {
		header, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return table, nil
			}
			return Table{}, fmt.Errorf("unable to read header: %w", err)
		}
		table.Header = header
	}
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Table{}, fmt.Errorf("unable to read CSV: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

type FileSource struct {
	Path       string
	HeaderRows int
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Fetch(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	file, err := os.Open(s.Path)
	if err != nil {
		return Table{}, err
	}
	defer file.Close()
	return ReadTable(file, s.HeaderRows)
}

// HTTPSource downloads a CSV export, e.g. a published Google Sheet
// (".../export?format=csv&gid=N").
type HTTPSource struct {
	URL        string
	HeaderRows int
	Client     *http.Client
	Timeout    time.Duration
}

func (s HTTPSource) Name() string { return s.URL }

func (s HTTPSource) Fetch(ctx context.Context) (Table, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Table{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Table{}, fmt.Errorf("fetch sheet: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ReadTable(resp.Body, s.HeaderRows)
}

// Static serves a fixed table.
type Static struct {
	Label string
	Table Table
	Err   error
}

func (s Static) Name() string { return s.Label }

func (s Static) Fetch(ctx context.Context) (Table, error) {
	if s.Err != nil {
		return Table{}, s.Err
	}
	return s.Table, ctx.Err()
}
