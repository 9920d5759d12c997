package web

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// VerifyLink is the public address that re-runs verification of code.
func VerifyLink(publicBaseURL, code string) string {
	return publicBaseURL + "/verify?" + url.Values{"barcode": {code}}.Encode()
}

// QRDataURI encodes content as a PNG QR code inside a data URI.
func QRDataURI(content string) (template.URL, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}
