package screen

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
)

var csvHeader = []string{"symbol", "close", "avg_qv_6w", "macd", "signal", "hist", "score"}

// CSVReporter renders match records to a UTF-8 CSV file, one row per match.
type CSVReporter struct {
	path string
}

// NewCSVReporter targets the given output path; parent directories are created
// on first write.
func NewCSVReporter(path string) *CSVReporter {
	return &CSVReporter{path: path}
}

// Path returns the configured output location.
func (r *CSVReporter) Path() string { return r.path }

// Write replaces the output file with a header plus one row per match, in the
// order given.
func (r *CSVReporter) Write(matches []Match) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return err
	}
	for _, m := range matches {
		row := []string{
			m.Symbol,
			formatFloat(m.Close),
			formatFloat(m.AvgQuoteVolume),
			formatFloat(m.MACD),
			formatFloat(m.Signal),
			formatFloat(m.Hist),
			formatFloat(m.Score),
		}
		if err := writer.Write(row); err != nil {
			file.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
