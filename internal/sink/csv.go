package sink

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/harvestlab/reddit-harvester/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink is an append-only raw row file shared by the workers of one group
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// Create truncates path and writes the header row
func Create(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return nil, fmt.Errorf("failed to write sink header: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(models.RawColumns); err != nil {
		return nil, fmt.Errorf("failed to write sink header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write sink header: %w", err)
	}

	return &CSVSink{path: path}, nil
}

func (s *CSVSink) Path() string {
	return s.path
}

// Append writes rows at the end of the file under the sink lock
func (s *CSVSink) Append(rows []models.RawRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open sink %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return fmt.Errorf("failed to append to sink %s: %w", s.path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// Remove deletes the sink file
func (s *CSVSink) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadRows loads every row of a sink file. A missing file reads as empty.
func ReadRows(path string) ([]models.RawRow, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open sink %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sink header %s: %w", path, err)
	}

	var rows []models.RawRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sink %s: %w", path, err)
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				fields[name] = record[i]
			}
		}
		rows = append(rows, models.RawRowFromMap(fields))
	}

	return rows, nil
}
