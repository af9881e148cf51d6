package snapshot

import (
	"time"

	"github.com/ivanldv/sportcal/internal/domain/event"
)

// ObsoleteRecord retains a prior-run event that dropped out of the
// current scrape, so later runs can tell cancellation from absence.
type ObsoleteRecord struct {
	Record   event.Record `json:"record"`
	LastSeen time.Time    `json:"last_seen"`
}
