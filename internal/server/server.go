// Package server exposes the KILN reconstruction engine over a REST API:
// launch an annealing run against an uploaded target grid, poll its
// progress, cancel it.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/copyleftdev/KILN/internal/config"
	"github.com/copyleftdev/KILN/internal/errors"
	"github.com/copyleftdev/KILN/internal/reconstruction"
	"github.com/copyleftdev/KILN/internal/reconstruction/cooldowns"
	"github.com/copyleftdev/KILN/internal/reconstruction/corrtrack"
	"github.com/copyleftdev/KILN/internal/reconstruction/costs"
	"github.com/copyleftdev/KILN/internal/reconstruction/initializers"
	"github.com/copyleftdev/KILN/internal/reconstruction/modifiers"
	"github.com/copyleftdev/KILN/internal/reconstruction/samplers"
)

// RunState tracks one reconstruction job. The state is guarded by the
// server's run mutex; the Annealer's own snapshot accessors are safe to
// call while the run goroutine is stepping.
type RunState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Steps       int
	InitialCost float64
	FinalCost   float64
	Error       string
	Annealer    *reconstruction.Annealer
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server manages reconstruction runs and their HTTP surface.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *Metrics

	runs   map[string]*RunState
	runsMu sync.RWMutex
}

// NewServer creates a server instance and registers its metrics.
func NewServer(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(reg),
		runs:    make(map[string]*RunState),
	}
}

// RegisterRoutes mounts the API.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reconstructions", s.handleStart)
		r.Get("/reconstructions/{id}", s.handleStatus)
		r.Delete("/reconstructions/{id}", s.handleCancel)
	})
}

// startRequest selects the target, the strategies and the run length.
type startRequest struct {
	Target   []int `json:"target"`
	Shape    []int `json:"shape"`
	Periodic bool  `json:"periodic"`

	Steps int     `json:"steps"`
	T0    float64 `json:"t0"`
	Seed  int64   `json:"seed"`

	Initializer string  `json:"initializer"` // random (default), spheres
	Modifier    string  `json:"modifier"`    // flip (default), swap
	Sampler     string  `json:"sampler"`     // interface (default), uniform, dpn
	Alpha       float64 `json:"alpha"`       // dpn bias, default 1

	Cost string  `json:"cost"` // directional (default), mean, mean_weighted, directional_weighted, capek
	Eta  float64 `json:"eta"`  // capek control, default 0.6

	Cooldown string  `json:"cooldown"` // exponential (default), aarts_korst, frost_heineman
	Lambda   float64 `json:"lambda"`
	Window   int     `json:"window"`

	SphereRadius    float64 `json:"sphere_radius"`
	SphereIntensity float64 `json:"sphere_intensity"`
}

// handleStart validates the request, assembles the annealing session and
// launches it in a goroutine.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	s.runsMu.RLock()
	active := 0
	for _, run := range s.runs {
		if run.Status == "pending" || run.Status == "running" {
			active++
		}
	}
	s.runsMu.RUnlock()
	if active >= s.cfg.Reconstruction.MaxRuns {
		s.respondError(w, http.StatusTooManyRequests, "maximum concurrent runs reached")
		return
	}

	annealer, steps, err := s.buildAnnealer(&req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &RunState{
		ID:          uuid.NewString(),
		Status:      "pending",
		StartTime:   time.Now(),
		Steps:       steps,
		Annealer:    annealer,
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.runsMu.Lock()
	s.runs[state.ID] = state
	s.runsMu.Unlock()

	go s.runReconstruction(ctx, state)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"reconstruction_id": state.ID,
		"status":            state.Status,
	})
}

// buildAnnealer translates a start request into a configured session.
func (s *Server) buildAnnealer(req *startRequest) (*reconstruction.Annealer, int, error) {
	target, err := s.buildTarget(req)
	if err != nil {
		return nil, 0, err
	}

	system, err := s.buildSystem(req, target)
	if err != nil {
		return nil, 0, err
	}

	sampler, err := buildSampler(req, system)
	if err != nil {
		return nil, 0, err
	}

	var modifier reconstruction.Modifier
	switch req.Modifier {
	case "", "flip":
		modifier = modifiers.NewFlipper(sampler)
	case "swap":
		modifier = modifiers.NewSwapper(sampler)
	default:
		return nil, 0, errors.Errorf("unknown modifier %q", req.Modifier)
	}

	cost, err := buildCost(req, system, target)
	if err != nil {
		return nil, 0, err
	}

	cooldown, err := buildCooldown(req)
	if err != nil {
		return nil, 0, err
	}

	steps := req.Steps
	if steps <= 0 {
		steps = s.cfg.Reconstruction.DefaultSteps
	}
	t0 := req.T0
	if t0 <= 0 {
		t0 = s.cfg.Reconstruction.DefaultT0
	}

	var prev reconstruction.Furnace
	annealer, err := reconstruction.NewAnnealer(reconstruction.AnnealerConfig{
		System:       system,
		Target:       target,
		T0:           t0,
		Cost:         cost,
		Modifier:     modifier,
		Cooldown:     cooldown,
		Seed:         req.Seed,
		HistoryEvery: s.cfg.Reconstruction.HistoryEvery,
		Logger:       s.logger,
		OnStep: func(f reconstruction.Furnace) {
			s.metrics.StepsTotal.Inc()
			if f.Accepted > prev.Accepted {
				s.metrics.AcceptedTotal.Inc()
			}
			if f.Rejected > prev.Rejected {
				s.metrics.RejectedTotal.Inc()
			}
			prev = f
		},
	})
	if err != nil {
		return nil, 0, err
	}
	return annealer, steps, nil
}

// buildTarget wraps the uploaded grid in a tracker with the service's
// default descriptor set.
func (s *Server) buildTarget(req *startRequest) (reconstruction.Tracker, error) {
	var dirs []reconstruction.Direction
	switch len(req.Shape) {
	case 2:
		dirs = []reconstruction.Direction{
			reconstruction.DirX, reconstruction.DirY,
			reconstruction.DirXY, reconstruction.DirYX,
		}
	case 3:
		dirs = []reconstruction.Direction{
			reconstruction.DirX3, reconstruction.DirY3, reconstruction.DirZ3,
		}
	default:
		return nil, errors.Errorf("shape must have 2 or 3 axes, got %d", len(req.Shape))
	}

	length := s.cfg.Reconstruction.CorrelationLength
	for _, dim := range req.Shape {
		if dim < length {
			length = dim
		}
	}

	data := make([]uint8, len(req.Target))
	for i, v := range req.Target {
		if v < 0 || v > 1 {
			return nil, errors.Errorf("target phase value %d at site %d, want 0 or 1", v, i)
		}
		data[i] = uint8(v)
	}

	return corrtrack.New(corrtrack.Config{
		Data:     data,
		Shape:    req.Shape,
		Periodic: req.Periodic,
		Length:   length,
		Descriptors: []reconstruction.Descriptor{
			{Kind: reconstruction.TwoPoint, Phase: 0},
			{Kind: reconstruction.LinealPath, Phase: 0},
			{Kind: reconstruction.LinealPath, Phase: 1},
		},
		Directions: dirs,
	})
}

func (s *Server) buildSystem(req *startRequest, target reconstruction.Tracker) (reconstruction.Tracker, error) {
	switch req.Initializer {
	case "", "random":
		return initializers.Random(target, nil, nil)
	case "spheres":
		r0, lam0 := req.SphereRadius, req.SphereIntensity
		if r0 <= 0 {
			r0 = 5
		}
		if lam0 <= 0 {
			lam0 = 0.01
		}
		return initializers.Spheres(target, nil, r0, lam0, nil)
	default:
		return nil, errors.Errorf("unknown initializer %q", req.Initializer)
	}
}

func buildSampler(req *startRequest, system reconstruction.Tracker) (samplers.Sampler, error) {
	switch req.Sampler {
	case "", "interface":
		return samplers.NewInterface(nil), nil
	case "uniform":
		return samplers.NewUniform(nil), nil
	case "dpn":
		alpha := req.Alpha
		if alpha <= 0 {
			alpha = 1
		}
		return samplers.NewDPN(system, alpha, nil)
	default:
		return nil, errors.Errorf("unknown sampler %q", req.Sampler)
	}
}

func buildCost(req *startRequest, system, target reconstruction.Tracker) (reconstruction.CostFunc, error) {
	switch req.Cost {
	case "", "directional":
		return costs.NewDirectional(), nil
	case "mean":
		return costs.NewMean(), nil
	case "mean_weighted":
		return costs.NewMeanWeighted(system, target)
	case "directional_weighted":
		return costs.NewDirectionalWeighted(system, target)
	case "capek":
		eta := req.Eta
		if eta <= 0 {
			eta = 0.6
		}
		return costs.NewCapek(system, target, eta)
	default:
		return nil, errors.Errorf("unknown cost %q", req.Cost)
	}
}

func buildCooldown(req *startRequest) (reconstruction.Schedule, error) {
	switch req.Cooldown {
	case "", "exponential":
		lambda := req.Lambda
		if lambda == 0 {
			lambda = cooldowns.DefaultLambda
		}
		if lambda <= 0 || lambda > 1 {
			return nil, errors.Errorf("exponential lambda must be in (0,1], got %v", lambda)
		}
		return cooldowns.NewExponential(lambda), nil
	case "aarts_korst":
		window, lambda := req.Window, req.Lambda
		if window == 0 {
			window = 15
		}
		if lambda == 0 {
			lambda = 0.01
		}
		if window < 2 || lambda <= 0 {
			return nil, errors.Errorf("invalid aarts_korst parameters (window=%d, lambda=%v)", window, lambda)
		}
		return cooldowns.NewAartsKorst(window, lambda), nil
	case "frost_heineman":
		window, lambda := req.Window, req.Lambda
		if window == 0 {
			window = 15
		}
		if lambda == 0 {
			lambda = 0.01
		}
		if window < 2 || lambda <= 0 {
			return nil, errors.Errorf("invalid frost_heineman parameters (window=%d, lambda=%v)", window, lambda)
		}
		return cooldowns.NewFrostHeineman(window, lambda), nil
	default:
		return nil, errors.Errorf("unknown cooldown %q", req.Cooldown)
	}
}

// runReconstruction executes one annealing run in a goroutine.
func (s *Server) runReconstruction(ctx context.Context, state *RunState) {
	defer errors.RecoverRun(s.logger, func(any) {
		s.finishRun(state, "failed", nil, "run panicked")
	})

	s.setStatus(state, "running")
	s.metrics.ActiveRuns.Inc()
	defer s.metrics.ActiveRuns.Dec()

	result, err := state.Annealer.Run(ctx, state.Steps)

	switch {
	case errors.Is(err, context.Canceled):
		s.finishRun(state, "cancelled", result, "")
	case err != nil:
		s.logger.Error("reconstruction failed",
			zap.String("reconstruction_id", state.ID),
			zap.Error(err))
		s.finishRun(state, "failed", result, err.Error())
	default:
		s.finishRun(state, "completed", result, "")
	}
}

func (s *Server) setStatus(state *RunState, status string) {
	s.runsMu.Lock()
	state.Status = status
	state.LastUpdated = time.Now()
	s.runsMu.Unlock()
}

func (s *Server) finishRun(state *RunState, status string, result *reconstruction.Result, errMsg string) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if state.Status == "cancelled" && status != "cancelled" {
		return
	}
	state.Status = status
	state.Error = errMsg
	if result != nil {
		state.InitialCost = result.InitialCost
		state.FinalCost = result.FinalCost
		s.metrics.CurrentCost.WithLabelValues(state.ID).Set(result.FinalCost)
	}
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
	s.metrics.RunsTotal.WithLabelValues(status).Inc()
}

// handleStatus reports a run's progress.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.RLock()
	state, exists := s.runs[id]
	if !exists {
		s.runsMu.RUnlock()
		s.respondError(w, http.StatusNotFound, "reconstruction not found")
		return
	}

	furnace := state.Annealer.Furnace()
	response := map[string]interface{}{
		"reconstruction_id": state.ID,
		"status":            state.Status,
		"start_time":        state.StartTime.Format(time.RFC3339),
		"last_update":       state.LastUpdated.Format(time.RFC3339),
		"steps":             furnace.Steps,
		"accepted":          furnace.Accepted,
		"rejected":          furnace.Rejected,
		"temperature":       furnace.Temperature,
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
		response["initial_cost"] = state.InitialCost
		response["final_cost"] = state.FinalCost
	}
	if state.Error != "" {
		response["error"] = state.Error
	}
	s.runsMu.RUnlock()

	if history := state.Annealer.History(); len(history) > 0 {
		samples := make([]map[string]interface{}, len(history))
		for i, sample := range history {
			samples[i] = map[string]interface{}{
				"step":        sample.Step,
				"cost":        sample.Cost,
				"temperature": sample.Temperature,
			}
		}
		response["history"] = samples
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancel cancels a running reconstruction.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.Lock()
	state, exists := s.runs[id]
	if !exists {
		s.runsMu.Unlock()
		s.respondError(w, http.StatusNotFound, "reconstruction not found")
		return
	}
	switch state.Status {
	case "completed", "failed", "cancelled":
		s.runsMu.Unlock()
		s.respondError(w, http.StatusConflict, "reconstruction already "+state.Status)
		return
	}
	state.Status = "cancelled"
	state.LastUpdated = time.Now()
	cancel := state.CancelFunc
	s.runsMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Info("reconstruction cancelled", zap.String("reconstruction_id", id))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancellation requested"})
}

// Close cancels every in-flight run.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	for _, run := range s.runs {
		if run.CancelFunc != nil {
			run.CancelFunc()
		}
	}
	return nil
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Error("request error",
		zap.Int("status", status),
		zap.String("message", message))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
