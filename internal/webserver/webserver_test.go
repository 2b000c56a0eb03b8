package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLiveIsAlwaysOK(t *testing.T) {
	s := New(":0")

	request := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	recorder := httptest.NewRecorder()
	s.handleLive(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestReadyIsUnavailableUntilSet(t *testing.T) {
	s := New(":0")

	request := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	recorder := httptest.NewRecorder()
	s.handleReady(recorder, request)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before SetReady", recorder.Code)
	}

	s.SetReady(true)

	recorder = httptest.NewRecorder()
	s.handleReady(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after SetReady(true)", recorder.Code)
	}

	s.SetReady(false)

	recorder = httptest.NewRecorder()
	s.handleReady(recorder, request)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 after SetReady(false)", recorder.Code)
	}
}
