package server

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/pseudonymizer"
	"github.com/raaihank/text-pseudonymizer/internal/rewriter"
	"github.com/raaihank/text-pseudonymizer/internal/synth"
	"github.com/raaihank/text-pseudonymizer/internal/websocket"
)

// PseudonymizeRequest is the body of POST /v1/pseudonymize. Spans, when
// present, replace the configured recognizer.
type PseudonymizeRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Text      string         `json:"text"`
	Spans     *[]entity.Span `json:"spans,omitempty"`
}

// PseudonymizeResponse is the answer to POST /v1/pseudonymize
type PseudonymizeResponse struct {
	SessionID  string                `json:"session_id"`
	DocumentID string                `json:"document_id,omitempty"`
	Report     *pseudonymizer.Report `json:"report"`
}

// SynthesizeRequest is the body of POST /v1/synthesize
type SynthesizeRequest struct {
	Templates     []string `json:"templates"`
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
	Count         int      `json:"count"`
	Seed          *uint64  `json:"seed,omitempty"`
}

// SynthesizeResponse is the answer to POST /v1/synthesize
type SynthesizeResponse struct {
	Examples []synth.Example `json:"examples"`
	Stats    synth.Stats     `json:"stats"`
	Seed     uint64          `json:"seed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if s.config.Server.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	settings := s.currentSettings()
	mode := pseudonymizer.PolicyFromConfig(settings).Mode

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            "text-pseudonymizer",
		"version":         Version,
		"recognizer":      s.pseudonymizer.Recognizer().Name(),
		"detectors":       s.scanner.GetEnabledRules(),
		"mode":            mode.String(),
		"audit_enabled":   s.reports != nil,
		"cache_enabled":   s.sessions.store != nil,
		"active_sessions": s.sessions.len(),
		"status":          s.status(),
	})
}

// handlePseudonymize pseudonymizes one document within a session
func (s *Server) handlePseudonymize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := s.logger.WithRequestID(getRequestID(r.Context()))

	var req PseudonymizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	log = log.WithSession(req.SessionID)

	settings := s.currentSettings()
	policy := pseudonymizer.PolicyFromConfig(settings)

	sess, err := s.sessions.acquire(r.Context(), req.SessionID)
	if err != nil {
		log.Error("Failed to open session", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	defer s.sessions.release(sess)

	var report *pseudonymizer.Report
	if req.Spans != nil {
		report, err = s.pseudonymizer.ProcessSpans(req.Text, *req.Spans, sess.reg, policy)
	} else {
		report, err = s.pseudonymizer.Process(r.Context(), req.Text, sess.reg, policy)
	}
	if err != nil {
		var spanErr *rewriter.SpanError
		if errors.As(err, &spanErr) {
			log.Info("Rejected invalid spans", zap.Int("span_index", spanErr.Index), zap.Error(spanErr.Err))
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Error("Entity recognition failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "entity recognition failed")
		return
	}

	if err := s.sessions.persist(r.Context(), sess); err != nil {
		log.Warn("Failed to cache session", zap.Error(err))
	}

	resp := PseudonymizeResponse{SessionID: req.SessionID, Report: report}
	if s.reports != nil {
		docID, err := s.reports.SaveReport(r.Context(), req.SessionID, report)
		if err != nil {
			log.Error("Failed to store audit record", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store audit record")
			return
		}
		resp.DocumentID = docID
	}

	s.documents.Add(1)
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDocumentProcessed,
		RequestID: getRequestID(r.Context()),
		Data: websocket.DocumentEvent{
			SessionID:       req.SessionID,
			DocumentID:      resp.DocumentID,
			Characters:      entity.RuneLen(req.Text),
			Entities:        len(report.Entities),
			EntitiesByType:  countByType(report.Entities),
			PatternMatches:  report.PatternMatches(),
			Correspondences: len(report.Correspondences),
			ProcessingMS:    float64(time.Since(start).Microseconds()) / 1000,
		},
	})

	writeJSON(w, http.StatusOK, resp)
}

func countByType(applied []rewriter.AppliedEntity) map[string]int {
	counts := make(map[string]int)
	for _, a := range applied {
		counts[a.Type.String()]++
	}
	return counts
}

// handleCorrespondences returns the correspondence map of a session
func (s *Server) handleCorrespondences(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if corr, ok := s.sessions.correspondences(id); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "correspondences": corr})
		return
	}

	if s.reports != nil {
		corr, err := s.reports.Correspondences(r.Context(), id)
		if err != nil {
			s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to load correspondences", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load correspondences")
			return
		}
		if len(corr) > 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "correspondences": corr})
			return
		}
	}

	if s.sessions.store != nil {
		snapshot, found, err := s.sessions.store.LoadSnapshot(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		if found {
			writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "correspondences": snapshot.Correspondences})
			return
		}
	}

	writeError(w, http.StatusNotFound, "unknown session")
}

// handleSynthesize generates annotated training examples
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SynthesizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Count <= 0 {
		req.Count = s.config.Synthesis.Count
	}
	if limit := s.config.Synthesis.MaxCount; limit > 0 && req.Count > limit {
		writeError(w, http.StatusBadRequest, "count exceeds the configured maximum")
		return
	}

	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}

	pools := synth.Pools{
		Persons:       req.Persons,
		Organizations: req.Organizations,
		Locations:     req.Locations,
	}
	examples, stats, err := synth.Generate(req.Templates, pools, req.Count, synth.NewRand(seed))
	if err != nil {
		if errors.Is(err, synth.ErrNoTemplates) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	if examples == nil {
		examples = []synth.Example{}
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeSynthesisCompleted,
		RequestID: getRequestID(r.Context()),
		Data: websocket.SynthesisEvent{
			Templates:    len(req.Templates),
			Requested:    stats.Requested,
			Accepted:     stats.Accepted,
			Rejected:     stats.Rejected,
			ProcessingMS: float64(time.Since(start).Microseconds()) / 1000,
		},
	})

	writeJSON(w, http.StatusOK, SynthesizeResponse{Examples: examples, Stats: stats, Seed: seed})
}
