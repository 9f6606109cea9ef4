package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// contextRequest is the JSON form of herdmetrics.Context.
type contextRequest struct {
	Animals       []herdmetrics.Record `json:"animals"`
	Events        []herdmetrics.Record `json:"events"`
	Parameters    map[string]any       `json:"parameters"`
	Current       herdmetrics.Record   `json:"current"`
	ReferenceDate string               `json:"reference_date"`
}

func (r contextRequest) toContext() (herdmetrics.Context, error) {
	env := herdmetrics.Context{
		Animals:    r.Animals,
		Events:     r.Events,
		Parameters: r.Parameters,
		Current:    r.Current,
	}
	if r.ReferenceDate != "" {
		t, ok := value.ParseDate(r.ReferenceDate)
		if !ok {
			return env, fmt.Errorf("invalid reference_date %q", r.ReferenceDate)
		}
		env.ReferenceDate = t
	}
	return env, nil
}

type formulaRequest struct {
	Formula string         `json:"formula" binding:"required"`
	Context contextRequest `json:"context"`
}

type evaluateResponse struct {
	Value value.Value `json:"value"`
	Error string      `json:"error,omitempty"`
}

type inspectResponse struct {
	Fields []string `json:"fields"`
	Params []string `json:"params"`
}

// evaluateFormula evaluates a formula. A formula that does not parse still
// answers 200 with a null value and the parse error.
func (s *Server) evaluateFormula(c *gin.Context) {
	var req formulaRequest
	if !bindJSON(c, &req) {
		return
	}
	env, err := req.Context.toContext()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.engine.EvaluateE(req.Formula, env)
	resp := evaluateResponse{Value: v}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) validateFormula(c *gin.Context) {
	var req formulaRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.engine.Validate(req.Formula))
}

func (s *Server) inspectFormula(c *gin.Context) {
	var req formulaRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, inspectResponse{
		Fields: herdmetrics.ExtractFields(req.Formula),
		Params: herdmetrics.ExtractParams(req.Formula),
	})
}
