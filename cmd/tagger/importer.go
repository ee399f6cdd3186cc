package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

const importChunkSize = 1000

// readLines parses "id, name" lines. The name is everything after the
// first comma, so names may contain commas. Blank lines are skipped.
func readLines(r io.Reader) ([]*core.Record, error) {
	var records []*core.Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, name, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"id, name\"", line)
		}
		rec := &core.Record{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)}
		if err := core.ValidateRecord(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// readCSV parses a CSV file whose first two columns are id and name.
// A header row naming the id column is skipped.
func readCSV(r io.Reader) ([]*core.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []*core.Record
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("row %d: expected at least 2 columns, got %d", row, len(fields))
		}
		if row == 1 && isHeader(fields[0]) {
			continue
		}
		rec := &core.Record{ID: strings.TrimSpace(fields[0]), Name: strings.TrimSpace(fields[1])}
		if err := core.ValidateRecord(rec); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func isHeader(field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "id", "food_id", "record_id":
		return true
	}
	return false
}

// readRecords picks the parser from format, or from the file extension
// when format is empty.
func readRecords(r io.Reader, path, format string) ([]*core.Record, error) {
	if format == "" {
		format = "lines"
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = "csv"
		}
	}
	switch format {
	case "lines":
		return readLines(r)
	case "csv":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("unknown import format %q: must be lines or csv", format)
	}
}

// importRecords adds records to the catalog in chunks.
func importRecords(ctx context.Context, catalog storage.CatalogRepository, records []*core.Record) error {
	for start := 0; start < len(records); start += importChunkSize {
		end := min(start+importChunkSize, len(records))
		if err := catalog.AddRecords(ctx, records[start:end]...); err != nil {
			return fmt.Errorf("records %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}
