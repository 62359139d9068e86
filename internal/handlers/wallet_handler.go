package handlers

import (
	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	ledgerService         services.LedgerService
	reconciliationService services.ReconciliationService
}

func NewWalletHandler(ledgerService services.LedgerService, reconciliationService services.ReconciliationService) *WalletHandler {
	return &WalletHandler{
		ledgerService:         ledgerService,
		reconciliationService: reconciliationService,
	}
}

// GetWallet returns the caller's wallet, creating it with the opening
// balance on first access.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	wallet, err := h.ledgerService.GetOrCreateWallet(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Wallet retrieved successfully", wallet)
}

// GetTransactions lists the caller's transaction history, optionally
// filtered by status.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	wallet, err := h.ledgerService.GetOrCreateWallet(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := models.TransactionStatus(c.Query("status"))
	params := utils.GetPaginationParams(c)
	transactions, total, err := h.ledgerService.GetTransactions(c.Request.Context(), wallet.ID, status, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(transactions),
	}
	utils.SuccessResponseWithMeta(c, "Transactions retrieved successfully", transactions, meta)
}

type topUpRequest struct {
	Phone  string  `json:"phone"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// TopUp starts an STK push crediting the caller's wallet.
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request topUpRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
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

	transaction, err := h.reconciliationService.TopUpWallet(c.Request.Context(), userID, phone, request.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Top up initiated, check your phone to complete payment", transaction)
}

type topUpCheckoutRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// TopUpCheckout starts a hosted card checkout crediting the caller's wallet.
func (h *WalletHandler) TopUpCheckout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request topUpCheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	transaction, redirectURL, err := h.reconciliationService.CreateTopUpSession(c.Request.Context(), userID, request.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Checkout session created", gin.H{
		"transaction":  transaction,
		"redirect_url": redirectURL,
	})
}
