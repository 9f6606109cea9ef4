package metric_test

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
)

// storeFactories runs the same contract against every Store.
var storeFactories = map[string]func(t *testing.T, opts ...metric.StoreOption) metric.Store{
	"memory": func(t *testing.T, opts ...metric.StoreOption) metric.Store {
		return metric.NewMemoryStore(opts...)
	},
	"sqlite": func(t *testing.T, opts ...metric.StoreOption) metric.Store {
		s, err := metric.NewSQLiteStore(":memory:", opts...)
		require.NoError(t, err)
		return s
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, newStore func(opts ...metric.StoreOption) metric.Store)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			fn(t, func(opts ...metric.StoreOption) metric.Store {
				s := factory(t, opts...)
				t.Cleanup(func() { _ = s.Close() })
				return s
			})
		})
	}
}

func TestStore_Create(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()

		created, err := s.Create(metric.Definition{FarmID: "farm-1", Formula: "COUNT(\"animals\")"})
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, metric.DefaultName, created.Name)
		assert.Equal(t, 1, created.Version)
		assert.True(t, created.IsCurrent)
		assert.True(t, created.IsActive)
		assert.True(t, created.PrefersHigher())
		assert.False(t, created.CreatedAt.IsZero())

		got, err := s.Get(created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Formula, got.Formula)
		assert.Equal(t, created.FarmID, got.FarmID)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})
}

func TestStore_CreateKeepsOptionalFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()
		def := validDefinition()
		def.ID = "fixed-id"
		def.HigherIsBetter = ptr(false)

		_, err := s.Create(def)
		require.NoError(t, err)

		got, err := s.Get("fixed-id")
		require.NoError(t, err)
		require.NotNil(t, got.Decimals)
		assert.Equal(t, 1, *got.Decimals)
		require.NotNil(t, got.TargetValue)
		assert.Equal(t, 85.0, *got.TargetValue)
		assert.Nil(t, got.WarningThreshold)
		assert.False(t, got.PrefersHigher())
		assert.Equal(t, metric.FormatPercentage, got.Format)

		_, err = s.Create(def)
		assert.ErrorIs(t, err, metric.ErrDuplicateID)
	})
}

func TestStore_CreateInvalid(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()

		_, err := s.Create(metric.Definition{Formula: "FOO()"})

		var verr *metric.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields["formula"], "unknown function: FOO")

		list, err := s.ListCurrent("")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestStore_UpdateInPlace(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()
		created, err := s.Create(validDefinition())
		require.NoError(t, err)

		updated, err := s.Update(metric.Definition{ID: created.ID, DisplayName: "Prenhez (%)", WarningThreshold: ptr(70.0)})
		require.NoError(t, err)

		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, 1, updated.Version)
		assert.Equal(t, "Prenhez (%)", updated.DisplayName)
		assert.Equal(t, created.Formula, updated.Formula, "empty fields keep the stored value")

		got, err := s.Get(created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Prenhez (%)", got.DisplayName)
		require.NotNil(t, got.WarningThreshold)
		assert.Equal(t, 70.0, *got.WarningThreshold)

		history, err := s.History("", created.Name)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}

func TestStore_UpdateFormulaCreatesVersion(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()
		def := validDefinition()
		def.FarmID = "farm-1"
		v1, err := s.Create(def)
		require.NoError(t, err)

		v2, err := s.Update(metric.Definition{ID: v1.ID, Formula: `COUNT("animals", "status = 'prenha'")`})
		require.NoError(t, err)

		assert.NotEqual(t, v1.ID, v2.ID)
		assert.Equal(t, 2, v2.Version)
		assert.True(t, v2.IsCurrent)
		assert.Equal(t, "farm-1", v2.FarmID)
		assert.Equal(t, v1.DisplayName, v2.DisplayName)

		old, err := s.Get(v1.ID)
		require.NoError(t, err)
		assert.False(t, old.IsCurrent)

		history, err := s.History("farm-1", def.Name)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 1, history[0].Version)
		assert.Equal(t, 2, history[1].Version)

		current, err := s.ListCurrent("farm-1")
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, v2.ID, current[0].ID)

		_, err = s.Update(metric.Definition{ID: v1.ID, Formula: "1"})
		assert.ErrorIs(t, err, metric.ErrStaleVersion)
	})
}

func TestStore_UpdateErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()

		_, err := s.Update(metric.Definition{ID: "missing", Formula: "1"})
		assert.ErrorIs(t, err, metric.ErrNotFound)

		created, err := s.Create(validDefinition())
		require.NoError(t, err)

		_, err = s.Update(metric.Definition{ID: created.ID, Formula: "(1"})
		assert.ErrorIs(t, err, metric.ErrInvalidDefinition)

		got, err := s.Get(created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Formula, got.Formula, "failed update changes nothing")
		assert.True(t, got.IsCurrent)
	})
}

func TestStore_ListCurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()

		mustCreate := func(d metric.Definition) metric.Definition {
			created, err := s.Create(d)
			require.NoError(t, err)
			return created
		}

		mustCreate(metric.Definition{FarmID: "farm-1", Name: "total", DisplayName: "Total de Animais", Category: metric.CategoryInventory, Formula: `COUNT("animals")`})
		mustCreate(metric.Definition{FarmID: "farm-1", Name: "prenhez", DisplayName: "Taxa de Prenhez", Category: metric.CategoryReproductive, Formula: "1"})
		mustCreate(metric.Definition{FarmID: "", Name: "del_medio", DisplayName: "DEL Médio", Category: metric.CategoryReproductive, Formula: `AVERAGE("animals", "del")`})
		mustCreate(metric.Definition{FarmID: "farm-2", Name: "outra", DisplayName: "Outra Fazenda", Formula: "1"})
		hidden := mustCreate(metric.Definition{FarmID: "farm-1", Name: "oculta", DisplayName: "Oculta", Category: metric.CategoryQuality, Formula: "1"})
		require.NoError(t, s.Deactivate(hidden.ID))

		list, err := s.ListCurrent("farm-1")
		require.NoError(t, err)

		names := make([]string, len(list))
		for i, d := range list {
			names[i] = d.Name
		}
		// inventory < reproductive; within a category by display name.
		assert.Equal(t, []string{"total", "del_medio", "prenhez"}, names)

		got, err := s.Get(hidden.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		assert.ErrorIs(t, s.Deactivate("missing"), metric.ErrNotFound)
	})
}

func TestStore_Closed(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()
		require.NoError(t, s.Close())
		assert.NoError(t, s.Close(), "close is idempotent")

		_, err := s.Create(validDefinition())
		assert.ErrorIs(t, err, metric.ErrStoreClosed)
		_, err = s.Get("x")
		assert.ErrorIs(t, err, metric.ErrStoreClosed)
		_, err = s.Update(metric.Definition{ID: "x"})
		assert.ErrorIs(t, err, metric.ErrStoreClosed)
		_, err = s.ListCurrent("")
		assert.ErrorIs(t, err, metric.ErrStoreClosed)
		_, err = s.History("", "x")
		assert.ErrorIs(t, err, metric.ErrStoreClosed)
		assert.ErrorIs(t, s.Deactivate("x"), metric.ErrStoreClosed)
	})
}

func TestStore_LogsNewVersions(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		var buf bytes.Buffer
		s := newStore(metric.WithStoreLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

		created, err := s.Create(validDefinition())
		require.NoError(t, err)
		_, err = s.Update(metric.Definition{ID: created.ID, Formula: "2"})
		require.NoError(t, err)

		assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("metric definition versioned")))
		assert.Contains(t, buf.String(), `"version":2`)
	})
}

func TestStore_Concurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(...metric.StoreOption) metric.Store) {
		s := newStore()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(metric.Definition{FarmID: "farm-1", Formula: "1"})
				assert.NoError(t, err)
				_, err = s.ListCurrent("farm-1")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		list, err := s.ListCurrent("farm-1")
		require.NoError(t, err)
		assert.Len(t, list, 20)
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	s1, err := metric.NewSQLiteStore(path)
	require.NoError(t, err)
	created, err := s1.Create(validDefinition())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := metric.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := metric.NewSQLiteStore("/nonexistent/path/metrics.db")
	assert.Error(t, err)
}
