package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{ErrNotFound, "not_found", http.StatusNotFound},
		{ErrParentNotFound, "parent_not_found", http.StatusBadRequest},
		{ErrForbidden, "forbidden", http.StatusForbidden},
		{ErrAlreadyVoted, "already_voted", http.StatusConflict},
		{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
		{ErrUpstream, "upstream_failure", http.StatusBadGateway},
		{ErrStorage, "storage_failure", http.StatusServiceUnavailable},
		{ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
		{errors.New("boom"), "internal", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("context: %w", tc.err)
		assert.Equal(t, tc.code, Code(wrapped), tc.err.Error())
		assert.Equal(t, tc.status, HTTPStatus(wrapped), tc.err.Error())
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(fmt.Errorf("x: %w", ErrConflict)))
	assert.False(t, Known(errors.New("plain")))
}

func TestEnvelope(t *testing.T) {
	status, body := Envelope(fmt.Errorf("comment body must not be empty: %w", ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, Body{Code: "invalid_input", Detail: "comment body must not be empty"}, body)

	status, body = Envelope(ErrForbidden)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body.Detail)

	fixed := []struct {
		err    error
		detail string
	}{
		{fmt.Errorf("get comment 0b3c: %w", ErrNotFound), "not found"},
		{fmt.Errorf("comment 0b3c: %w", ErrParentNotFound), "parent comment not found"},
		{fmt.Errorf("post 0b3c belongs to another user: %w", ErrForbidden), "forbidden"},
		{fmt.Errorf("cast vote: %w", ErrAlreadyVoted), "already voted"},
	}
	for _, tc := range fixed {
		_, body = Envelope(tc.err)
		assert.Equal(t, tc.detail, body.Detail, tc.err.Error())
		assert.NotContains(t, body.Detail, "0b3c")
	}

	status, body = Envelope(fmt.Errorf("list posts: %w: %w", ErrStorage, errors.New("pq: connection refused")))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "storage_failure", body.Code)
	assert.NotContains(t, body.Detail, "connection refused")

	status, body = Envelope(errors.New("nil pointer somewhere"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body.Detail)
}
