package input

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPauseMiddlewareOn(t *testing.T) {
	i := NewInputManager()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Called despite being paused!")
	})

	toTest := i.PauseMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	i.SetPause(true)

	toTest.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rr.Code)
	}
}

func TestPauseMiddlewareOff(t *testing.T) {
	i := NewInputManager()

	var x int = 10
	y := &x

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*y = 4
	})

	toTest := i.PauseMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	toTest.ServeHTTP(rr, req)

	if rr.Code == http.StatusServiceUnavailable {
		t.Errorf("Got 503, expected 200")
	}

	switch x {
	case 10:
		t.Errorf("Pause middleware was executed despite not being paused")
	case 4:
		// Ok
	default:
		t.Errorf("This case should not even be possible")
	}
}

func TestIsReadyWithoutComponents(t *testing.T) {
	i := NewInputManager()
	if i.IsReady() {
		t.Error("Manager claims readiness with nothing wired")
	}
}
