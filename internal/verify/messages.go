package verify

import (
	"errors"
	"net/http"
)

const (
	MessageProductNotFound    = "Product not found. Please check the barcode or verification code."
	MessageVerificationFailed = "Verification failed. Please try again."
	MessageNoMatch            = "No product found for this code. It may be invalid or the product may be inactive."
)

// FailureMessage picks the text shown for a failed lookup. A server detail
// always wins; otherwise 404 and every other failure get fixed messages.
func FailureMessage(err error) string {
	var detail string
	var d Detailer
	if errors.As(err, &d) {
		detail = d.ServerDetail()
	}
	if detail != "" {
		return detail
	}

	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() == http.StatusNotFound {
		return MessageProductNotFound
	}
	return MessageVerificationFailed
}
