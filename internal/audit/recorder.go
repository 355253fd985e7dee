package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexops/privguard/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultQueryLimit applies when a filter requests no limit.
	DefaultQueryLimit = 100
	// MaxQueryLimit is the hard cap on a single query.
	MaxQueryLimit = 1000
)

// Recorder is the audit trail front-end. Record never returns an error to
// the caller: audit persistence failure must not block a user-facing
// operation, so failures are logged through the diagnostic channel and
// swallowed. Writers serialize around the store; reads run concurrently.
type Recorder struct {
	store  Store
	logger *logger.Logger

	mu sync.Mutex // single-writer discipline around store.Append
}

// NewRecorder creates a recorder on top of the given store.
func NewRecorder(store Store, log *logger.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: log,
	}
}

// Record appends one privacy decision to the trail. ID and timestamp are
// filled in when absent. The entry must already be free of raw detected
// values; the Entry type has no field for them.
func (r *Recorder) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	err := r.store.Append(entry)
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Audit entry could not be persisted",
			zap.String("action", string(entry.Action)),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("Audit entry recorded",
		zap.String("action", string(entry.Action)),
		zap.String("entry_id", entry.ID),
	)
}

// Query returns matching entries newest first. Limits are clamped to
// MaxQueryLimit and default to DefaultQueryLimit.
func (r *Recorder) Query(filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultQueryLimit
	}
	if filter.Limit > MaxQueryLimit {
		filter.Limit = MaxQueryLimit
	}
	return r.store.Query(filter)
}

// Close releases the underlying store.
func (r *Recorder) Close() error {
	return r.store.Close()
}
