package utils

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

func ParseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Row is one CSV record keyed by lower-cased header.
type Row struct {
	Line   int
	Fields map[string]string
}

func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// ReadTable parses a CSV with a header row. Short rows leave the missing
// columns empty.
func ReadTable(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv has no header row")
	}
	if err != nil {
		return nil, err
	}
	header := make([]string, len(first))
	for i, h := range first {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		fields := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(record) {
				fields[name] = record[j]
			}
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}
	return rows, nil
}
