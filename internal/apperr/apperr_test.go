package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	dbErr := errors.New("connection refused")

	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: http.StatusOK},
		{name: "validation", err: Validation("latitude is required"), expected: http.StatusBadRequest},
		{name: "forbidden", err: Forbidden("bad secret"), expected: http.StatusForbidden},
		{name: "not found", err: NotFound("emergency %d not found", 7), expected: http.StatusNotFound},
		{name: "conflict", err: Conflict("already accepted"), expected: http.StatusConflict},
		{name: "unavailable", err: Unavailable("store", dbErr), expected: http.StatusServiceUnavailable},
		{name: "wrapped conflict", err: fmt.Errorf("accept: %w", Conflict("taken")), expected: http.StatusConflict},
		{name: "unknown", err: dbErr, expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HTTPStatus(tc.err))
		})
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Unavailable("failed to create emergency", cause)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to create emergency: disk full", err.Error())
}
