package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// ReportFileName returns <dataset-base>_on_<candidate>_eval_<YYYYMMDD_HHMMSS>.<ext>.
func ReportFileName(datasetName, candidateName string, at time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return fmt.Sprintf("%s_on_%s_eval_%s.%s",
		sanitizeName(DatasetBase(datasetName)),
		sanitizeName(candidateName),
		at.Format("20060102_150405"),
		ext,
	)
}

// DatasetBase strips directories and the extension from a dataset path.
func DatasetBase(datasetName string) string {
	base := filepath.Base(datasetName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}
