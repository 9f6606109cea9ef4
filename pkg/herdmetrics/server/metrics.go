package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

type calculateRequest struct {
	FarmID        string               `json:"farm_id"`
	Animals       []herdmetrics.Record `json:"animals"`
	Events        []herdmetrics.Record `json:"events"`
	Parameters    map[string]any       `json:"parameters"`
	ReferenceDate string               `json:"reference_date"`
	// MetricIDs restricts the calculation to these definitions.
	MetricIDs []string `json:"metric_ids"`
}

type calculateResponse struct {
	FarmID        string          `json:"farm_id"`
	ReferenceDate time.Time       `json:"reference_date"`
	Results       []metric.Result `json:"results"`
}

func (s *Server) listMetrics(c *gin.Context) {
	defs, err := s.store.ListCurrent(c.Query("farm_id"))
	if err != nil {
		s.storeError(c, "list metric definitions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": defs})
}

func (s *Server) getMetric(c *gin.Context) {
	def, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.storeError(c, "get metric definition", err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) createMetric(c *gin.Context) {
	var def metric.Definition
	if !bindJSON(c, &def) {
		return
	}

	created, err := s.store.Create(def)
	if err != nil {
		s.storeError(c, "create metric definition", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateMetric(c *gin.Context) {
	var def metric.Definition
	if !bindJSON(c, &def) {
		return
	}
	def.ID = c.Param("id")

	updated, err := s.store.Update(def)
	if err != nil {
		s.storeError(c, "update metric definition", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deactivateMetric(c *gin.Context) {
	if err := s.store.Deactivate(c.Param("id")); err != nil {
		s.storeError(c, "deactivate metric definition", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) metricHistory(c *gin.Context) {
	def, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.storeError(c, "get metric definition", err)
		return
	}
	history, err := s.store.History(def.FarmID, def.Name)
	if err != nil {
		s.storeError(c, "metric definition history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history})
}

// calculateMetrics calculates the farm's current definitions, or the subset
// named by metric_ids, against the posted herd.
func (s *Server) calculateMetrics(c *gin.Context) {
	var req calculateRequest
	if !bindJSON(c, &req) {
		return
	}

	ref := time.Now()
	if req.ReferenceDate != "" {
		t, ok := value.ParseDate(req.ReferenceDate)
		if !ok {
			fail(c, http.StatusBadRequest, "invalid reference_date")
			return
		}
		ref = t
	}

	defs, err := s.store.ListCurrent(req.FarmID)
	if err != nil {
		s.storeError(c, "list metric definitions", err)
		return
	}
	defs = selectDefinitions(defs, req.MetricIDs)

	results, err := s.calculator.Calculate(c.Request.Context(), metric.Batch{
		FarmID:        req.FarmID,
		Definitions:   defs,
		Animals:       req.Animals,
		Events:        req.Events,
		Parameters:    req.Parameters,
		ReferenceDate: ref,
	})
	if err != nil {
		s.logger.Error("calculate metrics", slog.String("farm_id", req.FarmID), slog.String("error", err.Error()))
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	c.JSON(http.StatusOK, calculateResponse{FarmID: req.FarmID, ReferenceDate: ref, Results: results})
}

func selectDefinitions(defs []metric.Definition, ids []string) []metric.Definition {
	if len(ids) == 0 {
		return defs
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]metric.Definition, 0, len(ids))
	for _, def := range defs {
		if wanted[def.ID] {
			out = append(out, def)
		}
	}
	return out
}

// storeError maps store errors onto status codes.
func (s *Server) storeError(c *gin.Context, op string, err error) {
	var verr *metric.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, metric.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, metric.ErrDuplicateID), errors.Is(err, metric.ErrStaleVersion):
		fail(c, http.StatusConflict, err.Error())
	default:
		s.logger.Error(op, slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, op+" failed")
	}
}
