package service

import (
	"context"

	"FuseBox/internal/biz"
	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// CircuitService exposes circuit state and admin operations over HTTP.
// Execution itself is in-process (callers embed the breaker usecase); this
// surface is for dashboards and operators.
type CircuitService struct {
	uc     *biz.CircuitBreakerUsecase
	logger *log.Helper
}

// NewCircuitService creates a new CircuitService instance.
func NewCircuitService(uc *biz.CircuitBreakerUsecase, logger log.Logger) *CircuitService {
	return &CircuitService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// RegisterRoutes mounts the circuit endpoints on the HTTP server.
func (s *CircuitService) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.GET("/circuits", s.ListCircuits)
	r.GET("/circuits/{id}", s.GetCircuit)
	r.POST("/circuits/{id}/reset", s.ResetCircuit)
}

// ListCircuits returns a health snapshot for every known circuit.
func (s *CircuitService) ListCircuits(ctx khttp.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return s.uc.Snapshots(), nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// GetCircuit returns the state and stats of one circuit. An id nobody has
// executed against reports CLOSED with zeroed stats, matching the implicit
// creation semantics of the execution path.
func (s *CircuitService) GetCircuit(ctx khttp.Context) error {
	id := ctx.Vars().Get("id")
	if id == "" {
		return errors.New(400, "CIRCUIT_ID_REQUIRED", "circuit id is required")
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		if snapshot, ok := s.uc.Snapshot(id); ok {
			return snapshot, nil
		}
		return &model.CircuitSnapshot{
			CircuitID:   id,
			State:       s.uc.GetState(c, id),
			SuccessRate: 1,
		}, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// resetRequest is the optional force-reset body.
type resetRequest struct {
	Note string `json:"note"`
}

// ResetCircuit force-closes a circuit and zeroes its counters.
func (s *CircuitService) ResetCircuit(ctx khttp.Context) error {
	id := ctx.Vars().Get("id")
	if id == "" {
		return errors.New(400, "CIRCUIT_ID_REQUIRED", "circuit id is required")
	}

	var req resetRequest
	// body is optional
	_ = ctx.Bind(&req)

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		s.logger.Infow("force-reset requested", "circuit_id", id, "note", req.Note)
		s.uc.ForceClose(c, id, req.Note)
		snapshot, _ := s.uc.Snapshot(id)
		return snapshot, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}
