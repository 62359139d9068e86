package handlers

import (
	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingHandler struct {
	bookingService        services.BookingService
	reconciliationService services.ReconciliationService
}

func NewBookingHandler(bookingService services.BookingService, reconciliationService services.ReconciliationService) *BookingHandler {
	return &BookingHandler{
		bookingService:        bookingService,
		reconciliationService: reconciliationService,
	}
}

type createBookingRequest struct {
	Seats         int                  `json:"seats" binding:"required,min=1"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
	Phone         string               `json:"phone"`
}

// CreateBooking books seats on a ride and starts payment on the chosen rail.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	var request createBookingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	phone := request.Phone
	if phone == "" {
		phone = c.GetString("phone")
	}
	if phone != "" {
		if !utils.IsValidPhone(phone) {
			utils.BadRequestResponse(c, "Invalid phone number")
			return
		}
		phone = utils.NormalizePhone(phone)
	}

	intent, err := h.reconciliationService.CreateBooking(c.Request.Context(), userID, rideID, request.Seats, request.PaymentMethod, phone)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Booking created successfully", intent)
}

// GetBooking retrieves one of the caller's bookings.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	booking, err := h.bookingService.GetByID(c.Request.Context(), bookingID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if booking.UserID != userID {
		utils.ForbiddenResponse(c)
		return
	}

	utils.SuccessResponse(c, "Booking retrieved successfully", booking)
}

// GetBookings lists the caller's bookings.
func (h *BookingHandler) GetBookings(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	bookings, total, err := h.bookingService.GetForUser(c.Request.Context(), userID, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(bookings),
	}
	utils.SuccessResponseWithMeta(c, "Bookings retrieved successfully", bookings, meta)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking cancels the caller's booking and releases any held seats.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request cancelBookingRequest
	if err := c.ShouldBindJSON(&request); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if request.Reason == "" {
		request.Reason = "cancelled by passenger"
	}

	booking, err := h.bookingService.GetByID(c.Request.Context(), bookingID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if booking.UserID != userID {
		utils.ForbiddenResponse(c)
		return
	}

	if err := h.bookingService.Cancel(c.Request.Context(), bookingID, request.Reason); err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Booking cancelled successfully", nil)
}

// ConfirmBooking lets the ride's driver confirm a pending booking manually.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}

	driverID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	if err := h.bookingService.ConfirmBooking(c.Request.Context(), bookingID, driverID); err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Booking confirmed successfully", nil)
}
