package core

import (
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	GisterErrorNotAuthenticated = "GISTER_NOT_AUTHENTICATED"
	GisterErrorAccountNotLinked = "GISTER_ACCOUNT_NOT_LINKED"
	GisterErrorUpstream         = "GISTER_UPSTREAM_ERROR"
	GisterErrorSchemaViolation  = "GISTER_SCHEMA_VIOLATION"
	GisterErrorBadInput         = "GISTER_BAD_INPUT"
	GisterErrorNotFound         = "GISTER_NOT_FOUND"
	GisterErrorInternal         = "GISTER_INTERNAL_ERROR"
)

// MetadataUpstreamStatus carries the external API status code on upstream
// failures so the boundary can render it without exposing anything else.
const MetadataUpstreamStatus = "upstream_status"

func NewNotAuthenticatedError() *goerrors.Error {
	return goerrors.New("no identity resolved for request", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(GisterErrorNotAuthenticated)
}

func NewAccountNotLinkedError(provider Provider) *goerrors.Error {
	return goerrors.New(string(provider)+" account not linked", goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(GisterErrorAccountNotLinked).
		WithMetadata(map[string]any{"provider": string(provider)})
}

// NewUpstreamError maps a non-2xx external status into the taxonomy. A 404
// keeps NotFound semantics so idempotent deletes surface cleanly.
func NewUpstreamError(status int) *goerrors.Error {
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	switch status {
	case http.StatusNotFound:
		category = goerrors.CategoryNotFound
		code = http.StatusNotFound
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
		code = http.StatusUnauthorized
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
		code = http.StatusForbidden
	}
	return goerrors.New("upstream API error ("+strconv.Itoa(status)+")", category).
		WithCode(code).
		WithTextCode(GisterErrorUpstream).
		WithMetadata(map[string]any{MetadataUpstreamStatus: status})
}

func NewSchemaViolationError(detail string) *goerrors.Error {
	message := "upstream response did not match expected shape"
	if strings.TrimSpace(detail) != "" {
		message = message + ": " + strings.TrimSpace(detail)
	}
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(GisterErrorSchemaViolation)
}

func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("invalid request input", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(GisterErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// IsAccountNotLinked reports whether err carries the account-not-linked
// text code anywhere in its chain.
func IsAccountNotLinked(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), GisterErrorAccountNotLinked)
}

// IsNotFound reports whether err carries the not-found category anywhere
// in its chain. Stores use it to distinguish an absent row from an
// infrastructure failure.
func IsNotFound(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryNotFound
}

func IsSchemaViolation(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), GisterErrorSchemaViolation)
}

// MapError normalizes any error into the gister envelope so the boundary
// can always distinguish unauthenticated, not-linked and upstream causes.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not linked"):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryAuthz).
				WithTextCode(GisterErrorAccountNotLinked),
		)
	case strings.Contains(msg, "not found"):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).
				WithTextCode(GisterErrorNotFound),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(GisterErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GisterErrorBadInput
	case goerrors.CategoryNotFound:
		return GisterErrorNotFound
	case goerrors.CategoryAuth:
		return GisterErrorNotAuthenticated
	case goerrors.CategoryAuthz:
		return GisterErrorAccountNotLinked
	case goerrors.CategoryExternal:
		return GisterErrorUpstream
	default:
		return GisterErrorInternal
	}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
