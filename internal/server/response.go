package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anhtuan9622/flippl/internal/auth"
	"github.com/anhtuan9622/flippl/internal/journal"
	"github.com/anhtuan9622/flippl/internal/share"
	"github.com/anhtuan9622/flippl/internal/stats"
)

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Code: 0, Message: "ok", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{Code: status, Message: message})
}

// failErr maps domain errors onto HTTP statuses. Validation failures carry
// their own message; anything unrecognized is a 500 with a generic body.
func failErr(c *gin.Context, err error) {
	var missing *stats.MissingSideError
	var mismatch *stats.QuantityMismatchError
	var badType *stats.InvalidTransactionTypeError

	switch {
	case errors.Is(err, journal.ErrNotFound), errors.Is(err, share.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, journal.ErrDetailedMode),
		errors.Is(err, journal.ErrInvalidDate),
		errors.Is(err, journal.ErrInvalidTradeCount),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.As(err, &missing),
		errors.As(err, &mismatch),
		errors.As(err, &badType):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrSessionExpired):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		fail(c, http.StatusConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "internal error")
	}
}
