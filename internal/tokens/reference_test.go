package tokens

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		name   string
		raw    string
		wantID bool
		code   string
		ok     bool
	}{
		{name: "bare id", raw: id.String(), wantID: true, ok: true},
		{name: "redeem url", raw: "https://boost.test/r/" + id.String(), wantID: true, ok: true},
		{name: "redeem url with query", raw: "https://boost.test/r/" + id.String() + "?src=qr#top", wantID: true, ok: true},
		{name: "short code", raw: " abc234 ", code: "ABC234", ok: true},
		{name: "short code in url", raw: "https://boost.test/r/xyz789/", code: "XYZ789", ok: true},
		{name: "empty", raw: "   ", ok: false},
		{name: "empty path", raw: "https://boost.test/r/", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, ok := ParseReference(tc.raw)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			if tc.wantID {
				require.NotNil(t, ref.ID)
				assert.Equal(t, id, *ref.ID)
				return
			}
			assert.Nil(t, ref.ID)
			assert.Equal(t, tc.code, ref.Code)
		})
	}
}

func TestQRData(t *testing.T) {
	id := uuid.MustParse("8f0e3c52-3f7e-4a55-9d2a-0b8f8f6f2b11")
	assert.Equal(t, "https://boost.test/r/8f0e3c52-3f7e-4a55-9d2a-0b8f8f6f2b11", QRData("https://boost.test/", id))
}

func TestRenderQRProducesPNG(t *testing.T) {
	png, err := RenderQR("https://boost.test/r/abc", 0)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
