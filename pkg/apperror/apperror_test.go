package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := NotFound("appointment %d not found", 42)
	want := "NOT_FOUND: appointment 42 not found"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestWithCause_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := DependencyUnavailable("daily cap lookup failed").WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
}

func TestAs_Wrapped(t *testing.T) {
	inner := SlotConflict("doctor already booked")
	wrapped := fmt.Errorf("book appointment: %w", inner)

	ae := As(wrapped)
	if ae == nil {
		t.Fatal("expected *Error from wrapped chain")
	}
	if ae.Code != CodeSlotConflict {
		t.Errorf("expected SLOT_CONFLICT, got %s", ae.Code)
	}
}

func TestAs_PlainError(t *testing.T) {
	if As(errors.New("boom")) != nil {
		t.Error("expected nil for plain error")
	}
	if CodeOf(errors.New("boom")) != "" {
		t.Error("expected empty code for plain error")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeSlotUnavailable, http.StatusConflict},
		{CodeSlotConflict, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeLimitExceeded, http.StatusUnprocessableEntity},
		{CodeCutoffViolation, http.StatusUnprocessableEntity},
		{CodeLeadTimeViolation, http.StatusUnprocessableEntity},
		{CodeInvalidState, http.StatusUnprocessableEntity},
		{CodeDependencyUnavailable, http.StatusServiceUnavailable},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.code); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
