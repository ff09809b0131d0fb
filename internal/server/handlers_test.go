package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexredact/lexredact/internal/config"
	"github.com/lexredact/lexredact/internal/logger"
	"github.com/lexredact/lexredact/internal/pii"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	cfg.WebSocket.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	engine := pii.NewEngine(log.Logger)
	srv, err := New(cfg, log, engine)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleAnonymize(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("ReplacesEntities", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize", anonymizeRequest{
			Text: "Contact John Smith at john.smith@example.com.",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var result pii.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !strings.Contains(result.AnonymizedText, "[PERSON-A]") {
			t.Errorf("person not replaced: %q", result.AnonymizedText)
		}
		if !strings.Contains(result.AnonymizedText, "[EMAIL-1]") {
			t.Errorf("email not replaced: %q", result.AnonymizedText)
		}
	})

	t.Run("PreservesLegalReferences", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize", anonymizeRequest{
			Text: "The claim rests on Article 6 GDPR.",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var result pii.Result
		json.Unmarshal(rec.Body.Bytes(), &result)
		if !strings.Contains(result.AnonymizedText, "Article 6 GDPR") {
			t.Errorf("legal reference mangled: %q", result.AnonymizedText)
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/anonymize", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		threshold := 1.5
		rec := postJSON(t, srv, "/v1/anonymize", anonymizeRequest{
			Text:     "anything",
			Settings: &settingsRequest{ConfidenceThreshold: &threshold},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleAnonymizeBatch(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("ConsistentAcrossDocuments", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize/batch", batchRequest{
			Texts: []string{
				"Statement of John Doe.",
				"John Doe repeated his account.",
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Results []pii.Result `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(resp.Results) != 2 {
			t.Fatalf("got %d results, want 2", len(resp.Results))
		}
		for i, res := range resp.Results {
			if !strings.Contains(res.AnonymizedText, "[PERSON-A]") {
				t.Errorf("result %d missing shared token: %q", i, res.AnonymizedText)
			}
		}
	})

	t.Run("EmptyTexts", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/anonymize/batch", batchRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleDetect(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("ReturnsEntities", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/detect", detectRequest{
			Text: "Email her at jane@example.org.",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Entities []pii.Entity `json:"entities"`
			Count    int          `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Count == 0 {
			t.Fatal("expected at least one entity")
		}
		found := false
		for _, e := range resp.Entities {
			if e.Type == pii.Email && e.Text == "jane@example.org" {
				found = true
			}
		}
		if !found {
			t.Errorf("email entity not found in %v", resp.Entities)
		}
	})

	t.Run("InvalidMode", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/detect", detectRequest{Text: "x", Mode: "psychic"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleClearAndStatistics(t *testing.T) {
	srv := newTestServer(t, nil)

	postJSON(t, srv, "/v1/anonymize", anonymizeRequest{
		Text: "Reach maria@example.com today.",
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/statistics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	var stats pii.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.TotalEntities == 0 {
		t.Fatal("expected nonzero statistics after anonymization")
	}

	clearRec := postJSON(t, srv, "/v1/clear", struct{}{})
	if clearRec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", clearRec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/statistics", nil))
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.TotalEntities != 0 {
		t.Errorf("statistics not reset: %+v", stats)
	}
}

func TestHandleEntityTypes(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/entity-types", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		EntityTypes []pii.EntityType `json:"entity_types"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.EntityTypes) != len(pii.AllEntityTypes) {
		t.Errorf("got %d types, want %d", len(resp.EntityTypes), len(pii.AllEntityTypes))
	}
}

func TestRateLimiting(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})

	first := postJSON(t, srv, "/v1/anonymize", anonymizeRequest{Text: "hello"})
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	second := postJSON(t, srv, "/v1/anonymize", anonymizeRequest{Text: "hello"})
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("info status = %d", rec.Code)
	}
	var info map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info["name"] != "lexredact" {
		t.Errorf("name = %v", info["name"])
	}
}
