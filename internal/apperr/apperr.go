// Package apperr holds the error taxonomy shared by stores, services and handlers.
//
// Every failure that reaches a client is one of the sentinels below, possibly
// wrapped with context via fmt.Errorf("...: %w", ErrX). Handlers map them to a
// stable code and an HTTP status; the wrapped text is only logged.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrParentNotFound = errors.New("parent comment not found")
	ErrForbidden      = errors.New("forbidden")
	ErrAlreadyVoted   = errors.New("already voted")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUpstream       = errors.New("upstream failure")
	ErrStorage        = errors.New("storage failure")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrBadCredentials = errors.New("bad credentials")
	ErrRateLimited    = errors.New("rate limited")
)

type kind struct {
	err    error
	code   string
	status int
}

// ErrParentNotFound must be checked before ErrNotFound: it is the more specific kind.
var kinds = []kind{
	{ErrParentNotFound, "parent_not_found", http.StatusBadRequest},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrAlreadyVoted, "already_voted", http.StatusConflict},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrUpstream, "upstream_failure", http.StatusBadGateway},
	{ErrStorage, "storage_failure", http.StatusServiceUnavailable},
	{ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{ErrConflict, "conflict", http.StatusBadRequest},
	{ErrBadCredentials, "bad_credentials", http.StatusBadRequest},
	{ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
}

// Code returns the stable, documented code for err. Unknown errors are "internal".
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Known reports whether err belongs to the taxonomy.
func Known(err error) bool {
	return Code(err) != "internal"
}

// Body is the JSON error envelope sent to clients.
type Body struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Envelope returns the status and body for err. Lookup, ownership, duplicate
// vote, storage, upstream and unclassified failures get a fixed detail so
// internal error text stays in the logs. Validation and auth failures keep
// the wrapped message, which is written for the client.
func Envelope(err error) (int, Body) {
	for _, k := range kinds {
		if !errors.Is(err, k.err) {
			continue
		}
		detail := k.err.Error()
		switch k.err {
		case ErrNotFound, ErrParentNotFound, ErrForbidden, ErrAlreadyVoted:
		case ErrStorage:
			detail = "storage is temporarily unavailable"
		case ErrUpstream:
			detail = "file storage service failed"
		default:
			if msg := strings.TrimSuffix(err.Error(), ": "+k.err.Error()); msg != "" {
				detail = msg
			}
		}
		return k.status, Body{Code: k.code, Detail: detail}
	}
	return http.StatusInternalServerError, Body{Code: "internal", Detail: "internal server error"}
}
