package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/aviaops/flightops/pkg/models"
)

func TestErrorResponse_Body(t *testing.T) {
	w := httptest.NewRecorder()

	if err := ErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "Too many login attempts"); err != nil {
		t.Fatalf("ErrorResponse returned error: %v", err)
	}

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["error"] != "rate_limited" || body["message"] != "Too many login attempts" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestWriteJSON_OKLeavesStatusToRecorder(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", w.Code)
	}
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	if err := WriteJSON(httptest.NewRecorder(), http.StatusOK, make(chan int)); err == nil {
		t.Error("expected error for unencodable data, got nil")
	}
}

func TestWriteData_WrapsFlightInEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	flight := &models.Flight{ID: uuid.New(), Route: "SVO-LED", Status: models.FlightStatusPlanned}

	if err := writeData(w, http.StatusCreated, flight); err != nil {
		t.Fatalf("writeData returned error: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusCreated)
	}

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if !body.Success {
		t.Error("expected success=true")
	}
	if body.Data["route"] != "SVO-LED" {
		t.Errorf("data.route = %v, want SVO-LED", body.Data["route"])
	}
	if _, ok := body.Data["costs"]; ok {
		t.Error("nil costs should be omitted from the response")
	}
}
