package evaluation

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"reviewbench/internal/domain"
)

var ErrMalformedDataset = errors.New("malformed dataset")

// Dataset is a loaded evaluation file. Raw keeps the original bytes so that
// scores can be written back without disturbing other fields.
type Dataset struct {
	Path        string
	RecordsPath string
	JSONLines   bool
	Raw         []byte
	Records     []domain.Record
	// Positions[i] is the array index (or zero-based line number for JSON
	// Lines) that Records[i] was read from.
	Positions []int
}

// LoadRecords reads path and returns its records. An unreadable or malformed
// source is logged and yields no records, so evaluation still produces
// all-zero results.
func LoadRecords(path, recordsPath string) []domain.Record {
	ds, err := ReadDataset(path, recordsPath)
	if err != nil {
		log.Printf("evaluation load error path=%s: %v", path, err)
		return nil
	}
	return ds.Records
}

// ReadDataset reads a JSON array document (optionally nested at recordsPath,
// a gjson path) or a JSON Lines file (.jsonl / .ndjson).
func ReadDataset(path, recordsPath string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds := &Dataset{Path: path, RecordsPath: recordsPath, Raw: data}

	if isJSONLines(path) {
		ds.JSONLines = true
		ds.Records, ds.Positions, err = parseJSONLines(data)
	} else {
		ds.Records, ds.Positions, err = parseJSONDocument(data, recordsPath)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func isJSONLines(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return true
	}
	return false
}

func parseJSONDocument(data []byte, recordsPath string) ([]domain.Record, []int, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("%w: invalid JSON", ErrMalformedDataset)
	}
	root := gjson.ParseBytes(data)
	if recordsPath != "" {
		root = root.Get(recordsPath)
		if !root.Exists() {
			return nil, nil, fmt.Errorf("%w: records path %q not found", ErrMalformedDataset, recordsPath)
		}
	}
	if !root.IsArray() {
		return nil, nil, fmt.Errorf("%w: expected a JSON array of records", ErrMalformedDataset)
	}

	var (
		records   []domain.Record
		positions []int
	)
	for i, elem := range root.Array() {
		record, ok := recordFrom(elem)
		if !ok {
			log.Printf("evaluation skip element=%d: not a JSON object", i)
			continue
		}
		records = append(records, record)
		positions = append(positions, i)
	}
	return records, positions, nil
}

func parseJSONLines(data []byte) ([]domain.Record, []int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		records   []domain.Record
		positions []int
	)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !gjson.ValidBytes(text) {
			log.Printf("evaluation skip line=%d: invalid JSON", line)
			continue
		}
		record, ok := recordFrom(gjson.ParseBytes(text))
		if !ok {
			log.Printf("evaluation skip line=%d: not a JSON object", line)
			continue
		}
		records = append(records, record)
		positions = append(positions, line-1)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	return records, positions, nil
}

func recordFrom(elem gjson.Result) (domain.Record, bool) {
	if !elem.IsObject() {
		return nil, false
	}
	m, ok := elem.Value().(map[string]any)
	if !ok {
		return nil, false
	}
	return domain.Record(m), true
}
