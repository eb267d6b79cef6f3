package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/analyzer"
	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/ruleset"
	"github.com/fundlens/screener-cli/internal/screener"
)

type analyzeRequest struct {
	Symbol    string           `json:"symbol"`
	Framework string           `json:"framework"`
	Metrics   metrics.Snapshot `json:"metrics,omitempty"`
	Save      bool             `json:"save,omitempty"`
}

type screenRequest struct {
	Symbol   string           `json:"symbol"`
	Screener string           `json:"screener"`
	Metrics  metrics.Snapshot `json:"metrics,omitempty"`
	History  metrics.History  `json:"history,omitempty"`
	Industry string           `json:"industry,omitempty"`
	Save     bool             `json:"save,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Framework == "" {
		req.Framework = "value_investing"
	}

	framework, err := ruleset.ResolveFramework(req.Framework)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := req.Metrics
	if snap == nil {
		if s.store == nil || req.Symbol == "" {
			respondError(w, http.StatusBadRequest, "metrics required when no store-backed symbol is given")
			return
		}
		history, err := s.store.History(r.Context(), req.Symbol, 1)
		if err != nil || len(history) == 0 {
			respondError(w, http.StatusNotFound, "no snapshot for symbol "+req.Symbol)
			return
		}
		snap = history[0]
	}

	result := analyzer.New(framework, s.log).Analyze(snap)

	resp := map[string]any{"symbol": req.Symbol, "result": result}
	if req.Save && s.store != nil {
		payload, err := json.Marshal(result)
		if err == nil {
			run, err := s.store.CreateRun(r.Context(), req.Symbol, model.RunKindAnalysis, framework.Name, payload)
			if err != nil {
				s.log.Warn("persist analysis run failed", zap.Error(err))
			} else {
				resp["run_id"] = run.ID
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Screener == "" {
		req.Screener = "quality_screener"
	}

	cfg, err := ruleset.ResolveScreener(req.Screener)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, history := req.Metrics, req.History
	if snap == nil && len(history) > 0 {
		snap = history[0]
	}
	if snap == nil {
		if s.store == nil || req.Symbol == "" {
			respondError(w, http.StatusBadRequest, "metrics or history required when no store-backed symbol is given")
			return
		}
		history, err = s.store.History(r.Context(), req.Symbol, 0)
		if err != nil || len(history) == 0 {
			respondError(w, http.StatusNotFound, "no snapshots for symbol "+req.Symbol)
			return
		}
		snap = history[0]
		if req.Industry == "" {
			if stock, err := s.store.GetStock(r.Context(), req.Symbol); err == nil {
				req.Industry = stock.Industry
			}
		}
	}

	result := screener.New(cfg, s.log).Screen(snap, history, req.Industry)

	resp := map[string]any{"symbol": req.Symbol, "result": result}
	if req.Save && s.store != nil {
		payload, err := json.Marshal(result)
		if err == nil {
			run, err := s.store.CreateRun(r.Context(), req.Symbol, model.RunKindScreening, cfg.Name, payload)
			if err != nil {
				s.log.Warn("persist screening run failed", zap.Error(err))
			} else {
				resp["run_id"] = run.ID
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFrameworks(w http.ResponseWriter, _ *http.Request) {
	builtins, err := ruleset.Builtins()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"frameworks": builtins})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "run storage not configured")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
