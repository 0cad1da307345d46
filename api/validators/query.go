package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
)

const dateLayout = "2006-01-02"

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidParam(err error, key string, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).WithDetails(details)
}

// QueryInt reads an integer parameter bounded to [min, max].
func QueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(err, key, nil)
	}
	if value < min || value > max {
		return 0, invalidParam(nil, key, map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// QueryUUID reads an optional uuid parameter.
func QueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalidParam(err, key, nil)
	}
	return &id, nil
}

// QueryTime accepts RFC3339 timestamps or plain dates, read as UTC midnight.
func QueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := t.UTC()
		return &utc, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, invalidParam(err, key, map[string]any{"format": "RFC3339 or YYYY-MM-DD"})
	}
	return &t, nil
}
