package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("service: %w", NotFound("entry", "42"))
	if KindOf(err) != KindNotFound {
		t.Errorf("expected NOT_FOUND, got %s", KindOf(err))
	}
	if !Is(err, KindNotFound) {
		t.Error("expected Is to match wrapped kind")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("expected plain errors to be internal")
	}
	if Is(nil, KindInternal) {
		t.Error("nil error must not match any kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NotFound("patient file", "P001"), http.StatusNotFound},
		{NotFoundForPatientFile("entry", "e1", "P001"), http.StatusNotFound},
		{ForbiddenVisibility(), http.StatusForbidden},
		{ForbiddenAuthorship("update"), http.StatusForbidden},
		{DuplicateKey("doctor", "D001"), http.StatusConflict},
		{SelfDelegation(), http.StatusConflict},
		{TypeMismatch("act", "mail"), http.StatusConflict},
		{CreateFailed("entry", errors.New("db down")), http.StatusInternalServerError},
		{ExternalRejection("rejected", map[string]string{"birth_date": "mismatch"}), http.StatusUnprocessableEntity},
		{BadRequest("bad"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestFailedErrors_HideCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := UpdateFailed("entry", cause)
	if err.Message != "could not update entry" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}

	_, body := render(err)
	raw, _ := json.Marshal(body)
	if string(raw) != `{"code":"UPDATE_FAILED","message":"could not update entry"}` {
		t.Errorf("unexpected body %s", raw)
	}
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(ForbiddenAuthorship("delete"), c)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"] != string(KindForbiddenAuthorship) {
		t.Errorf("expected FORBIDDEN_AUTHORSHIP, got %v", body["code"])
	}
}

func TestHTTPErrorHandler_EchoError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(echo.NewHTTPError(http.StatusUnauthorized, "invalid token"), c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "invalid token" {
		t.Errorf("expected message to be kept, got %v", body["message"])
	}
}

func TestHTTPErrorHandler_UnknownError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(errors.New("secret detail"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Body.String(); got == "" || strings.Contains(got, "secret detail") {
		t.Errorf("internal cause must not leak, got %s", got)
	}
}
