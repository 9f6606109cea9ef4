package metric

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/observability"
)

// Store is a versioned catalogue of metric definitions.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create stores a new definition as version 1. An empty ID is replaced
	// by a generated one and empty fields take their defaults.
	// Returns a *ValidationError if the result is invalid.
	Create(def Definition) (Definition, error)

	// Get returns the definition with the given ID, current or not.
	// Returns ErrNotFound if it does not exist.
	Get(id string) (Definition, error)

	// Update applies the non-empty fields of def to the definition with
	// def.ID. A changed formula supersedes the stored row with a new version
	// under a new ID; any other change is made in place.
	// Returns ErrNotFound, ErrStaleVersion or a *ValidationError.
	Update(def Definition) (Definition, error)

	// ListCurrent returns the current, active definitions of a farm together
	// with the global ones (empty FarmID), ordered by category and display
	// name.
	ListCurrent(farmID string) ([]Definition, error)

	// History returns every version of a named definition, oldest first.
	History(farmID, name string) ([]Definition, error)

	// Deactivate hides a definition from ListCurrent. Its history is kept.
	// Returns ErrNotFound if it does not exist.
	Deactivate(id string) error

	// Close releases any resources.
	Close() error
}

// StoreOption configures a Store implementation.
type StoreOption func(*storeHooks)

// WithStoreLogger logs new definition versions to logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(h *storeHooks) {
		h.logger = logger
	}
}

// WithStoreMetrics records new definition versions with recorder.
func WithStoreMetrics(recorder observability.MetricsRecorder) StoreOption {
	return func(h *storeHooks) {
		h.metrics = recorder
	}
}

// storeHooks is the observability shared by every Store implementation.
type storeHooks struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time
}

func newStoreHooks(opts []StoreOption) storeHooks {
	h := storeHooks{
		metrics: observability.NoopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func (h storeHooks) versioned(def Definition) {
	observability.LogDefinitionVersioned(h.logger, def.Name, def.Version)
	h.metrics.RecordDefinitionVersion(context.Background(), def.Name, def.Version)
}

// prepareCreate turns caller input into the row Create stores.
func (h storeHooks) prepareCreate(def Definition) (Definition, error) {
	def.ApplyDefaults()
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Version = 1
	def.IsCurrent = true
	def.IsActive = true
	now := h.now()
	def.CreatedAt, def.UpdatedAt = now, now

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// prepareUpdate merges patch into stored. versioned reports whether the
// result must be inserted as a new row superseding stored.
func (h storeHooks) prepareUpdate(stored, patch Definition) (next Definition, versioned bool, err error) {
	if !stored.IsCurrent {
		return Definition{}, false, ErrStaleVersion
	}

	next = stored.merge(patch)
	if err := next.Validate(); err != nil {
		return Definition{}, false, err
	}

	now := h.now()
	next.UpdatedAt = now
	if next.Formula == stored.Formula {
		return next, false, nil
	}

	next.ID = uuid.NewString()
	next.Version = stored.Version + 1
	next.IsCurrent = true
	next.CreatedAt = now
	return next, true, nil
}

// sortDefinitions orders definitions the way ListCurrent returns them.
func sortDefinitions(defs []Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Category != defs[j].Category {
			return defs[i].Category < defs[j].Category
		}
		return defs[i].DisplayName < defs[j].DisplayName
	})
}
