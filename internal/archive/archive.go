// Package archive provides the durable per-market CSV store for funding-rate
// series. Each market owns one file; writes merge the newly fetched series
// with the pre-existing archive (new values win ties, archived values fill
// gaps) and replace the file atomically so a partially written archive can
// never be observed.
package archive

import (
	"github.com/johnayoung/go-funding-archiver/internal/models"
)

// SeriesStore persists merged funding series.
//
// Implementations must guarantee that the destination file is either the
// previous complete archive or the new complete archive, never an
// intermediate state.
type SeriesStore interface {
	// Store merges series with the pre-existing archive for ticker and
	// atomically replaces the destination file. It returns the number of
	// lines written. Storing an empty series is a no-op.
	//
	// Filesystem errors propagate; they are the only error class that leaves
	// this component.
	Store(ticker string, series models.FundingSeries) (int, error)
}
