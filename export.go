package studybuddy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultExportDir is where results are exported when no directory is configured
const DefaultExportDir = "monitoring/results"

// ResultColumns is the header row of an exported results file
var ResultColumns = []string{"question", "user_answer", "correct_answer", "explanation", "is_correct", "graded_at"}

// maxExportSuffix bounds the search for a free export filename
const maxExportSuffix = 1000

// ExportResults writes results to <dir>/quiz_results_<timestamp>.csv and returns the path.
// An existing file is never overwritten; a numeric suffix is added instead.
func ExportResults(dir string, stamp time.Time, results []GradedResult) (string, error) {
	base := "quiz_results_" + stamp.Format("20060102_150405")
	path := filepath.Join(dir, base+".csv")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}

	file, path, err := createExportFile(dir, base)
	if err != nil {
		return "", &ExportError{Path: path, Err: err}
	}

	if err := WriteResultsCSV(file, results); err != nil {
		file.Close()
		return "", &ExportError{Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

func createExportFile(dir, base string) (*os.File, string, error) {
	path := filepath.Join(dir, base+".csv")
	for n := 2; ; n++ {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, fs.ErrExist) || n > maxExportSuffix {
			return nil, path, err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", base, n))
	}
}

// WriteResultsCSV writes a header row followed by one row per result
func WriteResultsCSV(w io.Writer, results []GradedResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultColumns); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Question,
			r.UserAnswer,
			r.CorrectAnswer,
			r.Explanation,
			strconv.FormatBool(r.IsCorrect),
			r.GradedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadResultsCSV reads a file written by ExportResults
func ReadResultsCSV(path string) ([]GradedResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results: %w", err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = len(ResultColumns)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("results file %s has no header", path)
	}

	results := make([]GradedResult, 0, len(records)-1)
	for i, record := range records[1:] {
		isCorrect, err := strconv.ParseBool(record[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid is_correct: %w", i+1, err)
		}
		gradedAt, err := time.Parse(time.RFC3339, record[5])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid graded_at: %w", i+1, err)
		}
		results = append(results, GradedResult{
			Question:      record[0],
			UserAnswer:    record[1],
			CorrectAnswer: record[2],
			Explanation:   record[3],
			IsCorrect:     isCorrect,
			GradedAt:      gradedAt,
		})
	}
	return results, nil
}
