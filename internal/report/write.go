package report

import (
	"fmt"
	"os"
	"path/filepath"
)

func WriteReportFile(content, outputDir, fileName string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(outputDir, filepath.Base(fileName))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
