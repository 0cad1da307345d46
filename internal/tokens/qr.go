package tokens

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// RenderQR encodes data as a PNG with medium error correction.
func RenderQR(data string, size int) ([]byte, error) {
	if data == "" {
		return nil, fmt.Errorf("qr data is required")
	}
	if size <= 0 {
		size = defaultQRSize
	}
	return qrcode.Encode(data, qrcode.Medium, size)
}
