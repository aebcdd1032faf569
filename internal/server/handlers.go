package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/inference"
	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/resolver"
	"github.com/ppiankov/eramap/internal/store"
)

const maxImportBytes = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// regionResponse is the AI resolver wire format
type regionResponse struct {
	Type        string   `json:"type,omitempty"`
	Countries   []string `json:"countries"`
	Timeframe   string   `json:"timeframe,omitempty"`
	Description string   `json:"description,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
}

type overrideRequest struct {
	Countries   []string `json:"countries"`
	Timeframe   string   `json:"timeframe"`
	Description string   `json:"description"`
	Manual      bool     `json:"manual"`
}

type overrideResponse struct {
	Result    model.InferenceResult `json:"result"`
	Conflicts []inference.Conflict  `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg, class string) {
	writeJSON(w, status, errorResponse{Error: msg, Class: class})
}

func periodParam(r *http.Request) string {
	raw := chi.URLParam(r, "period")
	if p, err := url.PathUnescape(raw); err == nil {
		return p
	}
	return raw
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

type healthResponse struct {
	Status            string `json:"status"`
	Resolver          string `json:"resolver"`
	ResolverAvailable *bool  `json:"resolver_available,omitempty"`
}

// handleHealth reports liveness. With ?check=true it also asks the resolver
// backend whether it is reachable; an unreachable backend reports degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Resolver: "none"}
	if s.resolver != nil {
		resp.Resolver = s.resolver.Name()
	}
	if check, _ := strconv.ParseBool(r.URL.Query().Get("check")); check {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		name, available, checked := resolver.Status(ctx, s.resolver)
		resp.Resolver = name
		if checked {
			resp.ResolverAvailable = &available
			if !available {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRegion answers GET /api/region?period=&title= using the configured resolver
func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if period == "" {
		writeError(w, http.StatusBadRequest, "period is required", resolver.ClassInvalidInput)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "no resolver configured", resolver.ClassNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.regionTimeout)
	defer cancel()

	res, err := s.resolver.Resolve(ctx, resolver.Request{
		Period: period,
		Title:  strings.TrimSpace(r.URL.Query().Get("title")),
	})
	if err != nil {
		class := resolver.Classify(err)
		zap.L().Warn("region resolve failed",
			zap.String("period", period),
			zap.String("class", class),
			zap.Error(err),
		)
		switch class {
		case resolver.ClassEmpty:
			writeJSON(w, http.StatusOK, regionResponse{Type: "unknown", Countries: []string{}, Confidence: string(model.ConfidenceLow)})
		case resolver.ClassTimeout:
			writeError(w, http.StatusGatewayTimeout, "resolver timed out", class)
		case resolver.ClassNotConfigured:
			writeError(w, http.StatusServiceUnavailable, "resolver not configured", class)
		default:
			writeError(w, http.StatusBadGateway, "resolver failed", class)
		}
		return
	}

	writeJSON(w, http.StatusOK, regionResponse{
		Type:        res.Type,
		Countries:   res.Countries,
		Timeframe:   res.Timeframe,
		Description: res.Description,
		Confidence:  string(res.Confidence),
	})
}

// handleInfer runs the full resolution order for GET /api/infer?era=&start_year=&end_year=&title=
func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	era := strings.TrimSpace(q.Get("era"))
	if era == "" {
		era = strings.TrimSpace(q.Get("period"))
	}
	if era == "" {
		writeError(w, http.StatusBadRequest, "era is required", resolver.ClassInvalidInput)
		return
	}

	query := model.InferenceQuery{Era: era, Title: strings.TrimSpace(q.Get("title"))}
	var err error
	if query.StartYear, err = yearParam(q, "start_year"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), resolver.ClassInvalidInput)
		return
	}
	if query.EndYear, err = yearParam(q, "end_year"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), resolver.ClassInvalidInput)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Infer(r.Context(), query))
}

func yearParam(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eris.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required", resolver.ClassInvalidInput)
		return
	}
	limit := 5
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	suggestions := s.engine.Suggest(query, limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Overrides()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeRecords(w, records)
}

func (s *Server) handleClearOverrides(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, http.StatusBadRequest, "clearing all overrides requires ?confirm=true", resolver.ClassInvalidInput)
		return
	}
	if err := s.engine.ClearOverrides(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutOverride(w http.ResponseWriter, r *http.Request) {
	period := periodParam(r)

	var req overrideRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImportBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", resolver.ClassInvalidInput)
		return
	}

	conflicts, err := s.engine.Conflicts(period)
	if err != nil && !eris.Is(err, inference.ErrInvalidPeriod) {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	src := model.SourceCustom
	if req.Manual {
		src = model.SourceManual
	}
	res, err := s.engine.SetOverride(period, req.Countries, req.Timeframe, req.Description, src)
	if err != nil {
		if eris.Is(err, inference.ErrInvalidPeriod) || eris.Is(err, inference.ErrNoCodes) {
			writeError(w, http.StatusBadRequest, err.Error(), resolver.ClassInvalidInput)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, overrideResponse{Result: res, Conflicts: otherConflicts(conflicts)})
}

// otherConflicts drops the exact key being overwritten
func otherConflicts(conflicts []inference.Conflict) []inference.Conflict {
	var out []inference.Conflict
	for _, c := range conflicts {
		if c.Source == model.SourceCustom && c.Exact {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.engine.Conflicts(periodParam(r))
	if err != nil {
		if eris.Is(err, inference.ErrInvalidPeriod) {
			writeError(w, http.StatusBadRequest, "period is required", resolver.ClassInvalidInput)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if conflicts == nil {
		conflicts = []inference.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteOverride(periodParam(r)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportOverrides(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body", resolver.ClassInvalidInput)
		return
	}

	n, err := s.engine.ImportOverrides(data)
	if err != nil {
		if eris.Is(err, store.ErrImportInvalidJSON) || eris.Is(err, store.ErrImportNoEntries) || eris.Is(err, store.ErrImportNoPeriod) {
			writeError(w, http.StatusBadRequest, err.Error(), resolver.ClassInvalidInput)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleExportOverrides(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.ExportOverrides()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="overrides.json"`)
		err = store.WriteJSON(w, entries)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="overrides.csv"`)
		err = store.WriteCSV(w, entries)
	default:
		writeError(w, http.StatusBadRequest, "format must be json or csv", resolver.ClassInvalidInput)
		return
	}
	if err != nil {
		zap.L().Warn("export overrides", zap.Error(err))
	}
}

func (s *Server) handleListCache(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.CachedResolutions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeRecords(w, records)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, http.StatusBadRequest, "clearing the cache requires ?confirm=true", resolver.ClassInvalidInput)
		return
	}
	if err := s.engine.ClearCache(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Evict(periodParam(r)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeRecords(w http.ResponseWriter, records []store.Record) {
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
