package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-funding-archiver/internal/models"
)

const (
	// relativeDir is the archive layout below both the destination root and
	// the optional read-only baseline root.
	relativeDir = "cryptofuture/dydx/margin_interest"

	// TimestampLayout is the fixed 17-character archive line timestamp,
	// always rendered in UTC.
	TimestampLayout = "20060102 15:04:05"
)

// Writer implements SeriesStore on the local filesystem.
type Writer struct {
	destRoot string
	dataRoot string // optional separate merge-baseline root; empty means destRoot
	logger   *slog.Logger
}

// NewWriter creates a Writer rooted at destRoot. When dataRoot is non-empty
// and distinct from destRoot, the merge baseline is read from dataRoot using
// the same relative layout.
func NewWriter(destRoot, dataRoot string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		destRoot: destRoot,
		dataRoot: dataRoot,
		logger:   logger,
	}
}

// DestPath returns the destination archive path for a ticker.
func (w *Writer) DestPath(ticker string) string {
	return filepath.Join(w.destRoot, filepath.FromSlash(relativeDir), fileName(ticker))
}

// Store implements the SeriesStore interface.
func (w *Writer) Store(ticker string, series models.FundingSeries) (int, error) {
	if len(series) == 0 {
		return 0, nil
	}

	destPath := w.DestPath(ticker)
	basePath := destPath
	if w.dataRoot != "" && w.dataRoot != w.destRoot {
		basePath = filepath.Join(w.dataRoot, filepath.FromSlash(relativeDir), fileName(ticker))
	}

	merged := make(models.FundingSeries, len(series))
	for ts, rate := range series {
		merged[ts] = rate
	}
	if err := mergeArchived(merged, basePath); err != nil {
		return 0, fmt.Errorf("failed to read archive baseline for %s: %w", ticker, err)
	}

	lines, err := w.replace(destPath, merged)
	if err != nil {
		return 0, err
	}

	w.logger.Info("archive updated",
		"ticker", ticker,
		"path", destPath,
		"lines", lines)
	return lines, nil
}

// replace renders the merged series sorted ascending by timestamp, writes it
// to a freshly named temporary file next to the destination, and renames it
// over the destination. The rename is what makes the replacement atomic; a
// crash mid-write leaves an orphaned temporary file and the destination
// untouched.
func (w *Writer) replace(destPath string, merged models.FundingSeries) (int, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary archive file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	buf := bufio.NewWriter(tmp)
	timestamps := merged.Timestamps()
	for _, ts := range timestamps {
		line := time.Unix(ts, 0).UTC().Format(TimestampLayout) + "," + merged[ts].String() + "\n"
		if _, err := buf.WriteString(line); err != nil {
			tmp.Close()
			return 0, fmt.Errorf("failed to write archive line: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to flush archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary archive file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to replace archive file: %w", err)
	}
	return len(timestamps), nil
}

// mergeArchived folds the pre-existing archive at path into series, inserting
// only timestamps the new series does not already hold: newly fetched values
// take precedence, archived values fill gaps. A missing baseline is not an
// error. Malformed rows (fewer than two comma fields, unparseable timestamp
// or rate) are skipped.
func mergeArchived(series models.FundingSeries, path string) error {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 2)
		if len(fields) < 2 {
			continue
		}
		ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(fields[0]), time.UTC)
		if err != nil {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		series.PutIfAbsent(ts.Unix(), rate)
	}
	return scanner.Err()
}

// fileName normalizes a ticker to its lowercase archive file name.
func fileName(ticker string) string {
	return strings.ToLower(ticker) + ".csv"
}
