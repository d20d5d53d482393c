package llm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"reviewbench/internal/evaluation"
)

// ScoredFileName is the default output path for a scored copy of path.
func ScoredFileName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_scored" + ext
}

// WriteScoredDataset writes candidateKey and its analysis fields (see
// AnalysisKeys) from ds.Records back into the original document bytes and
// saves the result to outPath. Every other field keeps its original value and
// order.
func WriteScoredDataset(ds *evaluation.Dataset, candidateKey, outPath string) error {
	if len(ds.Positions) != len(ds.Records) {
		return fmt.Errorf("dataset %s: %d records but %d positions", ds.Path, len(ds.Records), len(ds.Positions))
	}

	var (
		out []byte
		err error
	)
	if ds.JSONLines {
		out, err = setJSONLines(ds, AnalysisKeys(candidateKey))
	} else {
		out, err = setJSONDocument(ds, AnalysisKeys(candidateKey))
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("write scored dataset: %w", err)
	}
	return nil
}

func setJSONDocument(ds *evaluation.Dataset, keys []string) ([]byte, error) {
	out := ds.Raw
	for i, record := range ds.Records {
		prefix := strconv.Itoa(ds.Positions[i]) + "."
		if ds.RecordsPath != "" {
			prefix = ds.RecordsPath + "." + prefix
		}
		for _, key := range keys {
			v, ok := record[key]
			if !ok {
				continue
			}
			path := prefix + escapePathKey(key)
			var err error
			out, err = sjson.SetBytes(out, path, v)
			if err != nil {
				return nil, fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return pretty.Pretty(out), nil
}

func setJSONLines(ds *evaluation.Dataset, keys []string) ([]byte, error) {
	lines := bytes.Split(ds.Raw, []byte("\n"))
	for i, record := range ds.Records {
		pos := ds.Positions[i]
		if pos >= len(lines) {
			return nil, fmt.Errorf("line %d out of range", pos+1)
		}
		line := bytes.TrimRight(lines[pos], "\r")
		changed := false
		for _, key := range keys {
			v, ok := record[key]
			if !ok {
				continue
			}
			var err error
			line, err = sjson.SetBytes(line, escapePathKey(key), v)
			if err != nil {
				return nil, fmt.Errorf("set line %d: %w", pos+1, err)
			}
			changed = true
		}
		if changed {
			lines[pos] = pretty.Ugly(line)
		}
	}
	return bytes.Join(lines, []byte("\n")), nil
}

// escapePathKey escapes gjson/sjson path syntax in a literal object key.
func escapePathKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
