package handlers

import (
	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService services.RideService
}

func NewRideHandler(rideService services.RideService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
	}
}

// CreateRide publishes a new ride for the authenticated driver.
func (h *RideHandler) CreateRide(c *gin.Context) {
	var ride models.Ride
	if err := c.ShouldBindJSON(&ride); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	driverID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}
	ride.DriverID = driverID

	if err := h.rideService.Create(c.Request.Context(), &ride); err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

// GetRide retrieves a ride by id.
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	ride, err := h.rideService.GetByID(c.Request.Context(), rideID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// GetRides lists rides.
func (h *RideHandler) GetRides(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.List(c.Request.Context(), params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(rides),
	}
	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, meta)
}

// GetMyRides lists the authenticated driver's rides.
func (h *RideHandler) GetMyRides(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.GetByDriverID(c.Request.Context(), driverID, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(rides),
	}
	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, meta)
}

// GetRideBookings lists the bookings on one of the driver's rides.
func (h *RideHandler) GetRideBookings(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	driverID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	bookings, err := h.rideService.GetBookings(c.Request.Context(), rideID, driverID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Bookings retrieved successfully", bookings)
}
