package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	dir    string
	bom    bool
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir. Relative paths resolve under dir.
func NewCSVWriter(dir string, bom bool, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, bom: bom, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers and records to a file, replacing it if present.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	err := w.WriteFile(filePath, func(out io.Writer) error {
		if options.BOMPrefix {
			if err := WriteBOM(out); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}
		return writeRecords(out, options.Headers, options.Records)
	})
	return fullPath, err
}

// WriteFile creates filePath (and its directory) and hands it to fill. The BOM
// setting is not applied here; fill writes the complete content.
func (w *CSVWriter) WriteFile(filePath string, fill func(io.Writer) error) error {
	fullPath := w.resolvePath(filePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := fill(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteBOM writes the UTF-8 byte order mark Excel uses to detect the encoding.
func WriteBOM(out io.Writer) error {
	_, err := out.Write(utf8BOM)
	return err
}

// BOM reports whether files written by this writer should start with a UTF-8 BOM.
func (w *CSVWriter) BOM() bool {
	return w.bom
}

// resolvePath places relative paths under the reports directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.dir == "" {
		return filePath
	}
	return filepath.Join(w.dir, filePath)
}

func writeRecords(out io.Writer, headers []string, records [][]string) error {
	writer := csv.NewWriter(out)

	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
