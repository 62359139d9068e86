package routes

import (
	"ridelink/internal/handlers"
	"ridelink/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the API under /api/v1. Provider callbacks are
// public; everything else requires authentication.
func SetupRoutes(
	r *gin.Engine,
	jwtSecret string,
	rideHandler *handlers.RideHandler,
	bookingHandler *handlers.BookingHandler,
	walletHandler *handlers.WalletHandler,
	paymentHandler *handlers.PaymentHandler,
) {
	v1 := r.Group("/api/v1")

	// Provider callbacks authenticate themselves (signature or shared
	// callback URL), not via user tokens.
	payments := v1.Group("/payments")
	{
		payments.POST("/callback", paymentHandler.MpesaCallback)
		payments.POST("/webhook", paymentHandler.StripeWebhook)
	}

	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(jwtSecret))
	{
		rides := authed.Group("/rides")
		{
			rides.GET("", rideHandler.GetRides)
			rides.GET("/:id", rideHandler.GetRide)
			rides.POST("/:id/book", bookingHandler.CreateBooking)
		}

		driver := authed.Group("/rides")
		driver.Use(middleware.DriverRequired())
		{
			driver.POST("", rideHandler.CreateRide)
			driver.GET("/mine", rideHandler.GetMyRides)
			driver.GET("/:id/bookings", rideHandler.GetRideBookings)
		}

		bookings := authed.Group("/bookings")
		{
			bookings.GET("", bookingHandler.GetBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		}

		driverBookings := authed.Group("/bookings")
		driverBookings.Use(middleware.DriverRequired())
		{
			driverBookings.POST("/:id/confirm", bookingHandler.ConfirmBooking)
		}

		wallet := authed.Group("/wallet")
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.GET("/transactions", walletHandler.GetTransactions)
			wallet.POST("/topup", walletHandler.TopUp)
			wallet.POST("/topup/checkout", walletHandler.TopUpCheckout)
		}

		authed.GET("/payments/status", paymentHandler.QueryStatus)
	}
}
