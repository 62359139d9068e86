package handlers

import (
	"errors"
	"net/http"

	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/payment"

	"github.com/gin-gonic/gin"
)

// handleServiceError maps domain errors onto HTTP responses. Anything
// unmapped is a 500 with no internal detail leaked.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInsufficientSeats):
		utils.ErrorResponse(c, http.StatusConflict, utils.CodeInsufficientSeats, err.Error())
	case errors.Is(err, services.ErrDuplicateBooking):
		utils.ErrorResponse(c, http.StatusConflict, utils.CodeDuplicateBooking, err.Error())
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.ErrorResponse(c, http.StatusPaymentRequired, utils.CodeInsufficientBalance, err.Error())
	case errors.Is(err, services.ErrInvalidPaymentMethod):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidPaymentMethod, err.Error())
	case errors.Is(err, services.ErrBookingNotPending):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrNotRideOwner):
		utils.ForbiddenResponse(c)
	case errors.Is(err, services.ErrTransactionNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeTransactionNotFound, err.Error())
	case errors.Is(err, payment.ErrInvalidPhone):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidPhone, err.Error())
	case errors.Is(err, payment.ErrAuthFailed):
		utils.ErrorResponse(c, http.StatusBadGateway, utils.CodeProviderAuthError, "payment provider authentication failed")
	case errors.Is(err, payment.ErrRequestFailed):
		utils.ErrorResponse(c, http.StatusBadGateway, utils.CodeProviderRequestError, "payment provider request failed")
	case errors.Is(err, payment.ErrQueryNotSupported):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, interfaces.ErrNotFound):
		utils.NotFoundResponse(c, "resource")
	default:
		utils.InternalServerErrorResponse(c)
	}
}
