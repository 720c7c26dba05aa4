package handlers

import (
	"errors"
	"net/http"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/marinade"
	"github.com/example/solprobe/internal/solana"
	"github.com/example/solprobe/internal/store"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, funding.ErrInvalidAmount),
		errors.Is(err, marinade.ErrInvalidData),
		errors.Is(err, marinade.ErrZeroAccount),
		errors.Is(err, marinade.ErrFeeTooHigh),
		errors.Is(err, marinade.ErrFeeOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case solana.IsRejection(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, solana.ErrConfirmTimeout), errors.Is(err, solana.ErrBlockhashExpired):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
