package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"staybid/pkg/config"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
	"staybid/pkg/sanitizer"
)

const HeaderUserID = "X-User-ID"

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractLimit reads ?limit for the short projections (ending soon, region listings).
func ExtractLimit(r *http.Request, fallback int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return config.NormalizeListLimit(fallback), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid limit parameter: " + s)
	}
	return config.NormalizeListLimit(v), nil
}

// QueryDay parses a required YYYY-MM-DD query parameter.
func QueryDay(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput(name + " is required")
	}
	day, err := model.ParseDay(raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + name + " (expected YYYY-MM-DD): " + raw)
	}
	return day, nil
}

// DecodeJSON reads a JSON body into dst, rejecting unknown trailing content.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is empty")
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return apperrors.InvalidInput("request body is not valid JSON")
		case errors.As(err, &typeErr):
			return apperrors.InvalidInput("invalid type for field " + typeErr.Field)
		default:
			return apperrors.InvalidInput("invalid request body: " + err.Error())
		}
	}
	return nil
}

// UserID returns the caller identity set by the upstream auth gateway.
func UserID(r *http.Request) string {
	return sanitizer.NormalizeIdentifier(r.Header.Get(HeaderUserID))
}
