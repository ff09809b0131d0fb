package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/pii"
	"github.com/lexredact/lexredact/internal/websocket"
)

// settingsRequest carries per-request overrides of the configured engine
// defaults. Pointer fields distinguish "unset" from zero values.
type settingsRequest struct {
	EntityTypes         []pii.EntityType `json:"entity_types"`
	ConfidenceThreshold *float64         `json:"confidence_threshold"`
	PreserveLegalRefs   *bool            `json:"preserve_legal_references"`
	ConsistentReplace   *bool            `json:"consistent_replacement"`
	Language            string           `json:"language"`
}

type anonymizeRequest struct {
	Text     string           `json:"text"`
	Settings *settingsRequest `json:"settings"`
}

type batchRequest struct {
	Texts    []string         `json:"texts"`
	Settings *settingsRequest `json:"settings"`
}

type detectRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Mode     string `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// resolveSettings merges request overrides onto the configured defaults.
func (s *Server) resolveSettings(req *settingsRequest) (pii.Settings, error) {
	defaults := s.config.Engine.Defaults
	settings := pii.Settings{
		ConfidenceThreshold: defaults.ConfidenceThreshold,
		PreserveLegalRefs:   defaults.PreserveLegalRefs,
		ConsistentReplace:   defaults.ConsistentReplace,
		Language:            defaults.Language,
	}
	for _, t := range defaults.EntityTypes {
		settings.EntityTypes = append(settings.EntityTypes, pii.EntityType(t))
	}

	if req != nil {
		if req.EntityTypes != nil {
			settings.EntityTypes = req.EntityTypes
		}
		if req.ConfidenceThreshold != nil {
			settings.ConfidenceThreshold = *req.ConfidenceThreshold
		}
		if req.PreserveLegalRefs != nil {
			settings.PreserveLegalRefs = *req.PreserveLegalRefs
		}
		if req.ConsistentReplace != nil {
			settings.ConsistentReplace = *req.ConsistentReplace
		}
		if req.Language != "" {
			settings.Language = req.Language
		}
	}

	if err := settings.Validate(); err != nil {
		return pii.Settings{}, err
	}
	return settings, nil
}

// handleAnonymize anonymizes a single document
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	settings, err := s.resolveSettings(req.Settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	result := s.engine.Anonymize(r.Context(), req.Text, settings)
	s.broadcastSummary(getRequestID(r.Context()), "anonymize", result.Entities, settings.Language, time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

// handleAnonymizeBatch anonymizes several documents against one shared
// replacement map, so recurring entities receive identical tokens across
// the whole batch.
func (s *Server) handleAnonymizeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts must not be empty")
		return
	}

	settings, err := s.resolveSettings(req.Settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	results := s.engine.AnonymizeBatch(r.Context(), req.Texts, settings)

	var entities []pii.Entity
	for _, res := range results {
		entities = append(entities, res.Entities...)
	}
	s.broadcastSummary(getRequestID(r.Context()), "anonymize_batch", entities, settings.Language, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// handleDetect returns detected entities without rewriting the text
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	mode := s.engine.Mode()
	if req.Mode != "" {
		mode = pii.DetectionMode(req.Mode)
		if !mode.Valid() {
			writeError(w, http.StatusBadRequest, "invalid mode: "+req.Mode)
			return
		}
	}
	language := req.Language
	if language == "" {
		language = s.config.Engine.Defaults.Language
	}

	entities := s.engine.DetectOnly(r.Context(), req.Text, language, mode)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entities,
		"count":    len(entities),
	})
}

// handleClear erases every stored original-to-token mapping and resets all
// counters. The next anonymization starts from [PERSON-A] again.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	s.logger.WithRequestID(getRequestID(r.Context())).Info("Replacement map cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleStatistics returns cumulative per-type entity counts
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleEntityTypes lists the supported entity types
func (s *Server) handleEntityTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entity_types": s.engine.EntityTypes(),
	})
}

// handleAuditRecent returns recently persisted audit records
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := s.auditStore.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load audit records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load audit records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
	})
}

// broadcastSummary pushes an aggregate event to WebSocket subscribers.
func (s *Server) broadcastSummary(requestID, operation string, entities []pii.Entity, language string, elapsed time.Duration) {
	breakdown := make(map[string]int)
	for _, e := range entities {
		breakdown[string(e.Type)]++
	}
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeAnonymization,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.AnonymizationEvent{
			RequestID:    requestID,
			Operation:    operation,
			EntityCount:  len(entities),
			Breakdown:    breakdown,
			Language:     language,
			ProcessingMS: float64(elapsed.Microseconds()) / 1000.0,
		},
	})
}

// decodeBody decodes a JSON request body, enforcing the configured size
// cap. It writes the error response itself and reports success.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if s.config.Server.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodySize)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
