package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
)

func TestCleanIsRuneSafe(t *testing.T) {
	assert.Equal(t, "café", Clean("  café au lait ", 4))
	assert.Equal(t, "main st", Clean("main\x00 st\n", 0))
	assert.Equal(t, "", Clean("   ", 10))
	assert.Equal(t, "ab", Clean("ab", 5))
}

type redeemBody struct {
	Token     string   `json:"token" validate:"required,max=8"`
	Locations []string `json:"locations" validate:"omitempty,dive,max=3"`
	Timezone  *string  `json:"timezone" validate:"omitempty,timezone"`
}

func TestDecodeJSONBody(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"token":"ABC123"}`))
		var dest redeemBody
		require.NoError(t, DecodeJSONBody(req, &dest))
		assert.Equal(t, "ABC123", dest.Token)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		err := DecodeJSONBody(req, &redeemBody{})
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"token":"A","extra":1}`))
		assert.Error(t, DecodeJSONBody(req, &redeemBody{}))
	})

	t.Run("trailing object", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"token":"A"}{"token":"B"}`))
		assert.Error(t, DecodeJSONBody(req, &redeemBody{}))
	})

	t.Run("field paths", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"token":"","locations":["ok","toolong"],"timezone":"Mars/Olympus"}`))
		err := DecodeJSONBody(req, &redeemBody{})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		details, ok := typed.Details().(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "is required", details["token"])
		assert.Contains(t, details, "locations[1]")
		assert.Equal(t, "must be an IANA timezone", details["timezone"])
	})
}

func TestQueryParsers(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=20&from=2026-03-01&to=2026-03-02T10:00:00-05:00&merchant_id=nope", nil)

	limit, err := QueryInt(req, "limit", 50, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)

	_, err = QueryInt(req, "limit", 50, 1, 10)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	from, err := QueryTime(req, "from")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T00:00:00Z", from.Format("2006-01-02T15:04:05Z07:00"))

	to, err := QueryTime(req, "to")
	require.NoError(t, err)
	assert.Equal(t, 15, to.Hour())

	_, err = QueryUUID(req, "merchant_id")
	assert.Error(t, err)

	missing, err := QueryUUID(req, "offer_id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
