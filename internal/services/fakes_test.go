package services

import (
	"context"
	"sync"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/payment"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repositories backing the service tests. They apply the same
// bson-keyed update maps the mongo implementations do, so the services are
// exercised with the exact field names they write in production.

type fakeRideRepo struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (f *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	clone := *ride
	f.rides[ride.ID] = &clone
	return nil
}

func (f *fakeRideRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) List(ctx context.Context, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rides []*models.Ride
	for _, ride := range f.rides {
		clone := *ride
		rides = append(rides, &clone)
	}
	return rides, int64(len(rides)), nil
}

func (f *fakeRideRepo) GetByDriverID(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rides []*models.Ride
	for _, ride := range f.rides {
		if ride.DriverID == driverID {
			clone := *ride
			rides = append(rides, &clone)
		}
	}
	return rides, int64(len(rides)), nil
}

func (f *fakeRideRepo) UpdateSeats(ctx context.Context, id primitive.ObjectID, availableSeats int, status models.RideStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	ride.AvailableSeats = availableSeats
	ride.Status = status
	return nil
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[primitive.ObjectID]*models.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[primitive.ObjectID]*models.Booking)}
}

func (f *fakeBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	clone := *booking
	f.bookings[booking.ID] = &clone
	return nil
}

func (f *fakeBookingRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	clone := *booking
	return &clone, nil
}

func (f *fakeBookingRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			booking.Status = value.(models.BookingStatus)
		case "is_paid":
			booking.IsPaid = value.(bool)
		case "seats_deducted":
			booking.SeatsDeducted = value.(bool)
		case "cancellation_reason":
			booking.CancellationReason = value.(string)
		}
	}
	return nil
}

func (f *fakeBookingRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Booking, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bookings []*models.Booking
	for _, booking := range f.bookings {
		if booking.UserID == userID {
			clone := *booking
			bookings = append(bookings, &clone)
		}
	}
	return bookings, int64(len(bookings)), nil
}

func (f *fakeBookingRepo) GetByRideID(ctx context.Context, rideID primitive.ObjectID) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bookings []*models.Booking
	for _, booking := range f.bookings {
		if booking.RideID == rideID {
			clone := *booking
			bookings = append(bookings, &clone)
		}
	}
	return bookings, nil
}

func (f *fakeBookingRepo) HasActiveBooking(ctx context.Context, userID, rideID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, booking := range f.bookings {
		if booking.UserID == userID && booking.RideID == rideID && booking.Status != models.BookingStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingRepo) GetOldestPendingUnpaid(ctx context.Context, userID primitive.ObjectID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *models.Booking
	for _, booking := range f.bookings {
		if booking.UserID != userID || booking.Status != models.BookingStatusPending || booking.IsPaid {
			continue
		}
		if oldest == nil || booking.BookedAt.Before(oldest.BookedAt) {
			oldest = booking
		}
	}
	if oldest == nil {
		return nil, interfaces.ErrNotFound
	}
	clone := *oldest
	return &clone, nil
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[primitive.ObjectID]*models.Wallet
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[primitive.ObjectID]*models.Wallet)}
}

func (f *fakeWalletRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	clone := *wallet
	return &clone, nil
}

func (f *fakeWalletRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, wallet := range f.wallets {
		if wallet.UserID == userID {
			clone := *wallet
			return &clone, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (f *fakeWalletRepo) GetOrCreate(ctx context.Context, userID primitive.ObjectID, openingBalance float64) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, wallet := range f.wallets {
		if wallet.UserID == userID {
			clone := *wallet
			return &clone, nil
		}
	}
	wallet := &models.Wallet{
		ID:       primitive.NewObjectID(),
		UserID:   userID,
		Balance:  openingBalance,
		Currency: utils.DefaultCurrency,
		IsActive: true,
	}
	f.wallets[wallet.ID] = wallet
	clone := *wallet
	return &clone, nil
}

func (f *fakeWalletRepo) UpdateBalance(ctx context.Context, id primitive.ObjectID, balance float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	wallet.Balance = balance
	return nil
}

type fakeTransactionRepo struct {
	mu           sync.Mutex
	transactions map[primitive.ObjectID]*models.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{transactions: make(map[primitive.ObjectID]*models.Transaction)}
}

func (f *fakeTransactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if transaction.ID.IsZero() {
		transaction.ID = primitive.NewObjectID()
	}
	clone := *transaction
	f.transactions[transaction.ID] = &clone
	return nil
}

func (f *fakeTransactionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	transaction, ok := f.transactions[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	clone := *transaction
	return &clone, nil
}

func (f *fakeTransactionRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	transaction, ok := f.transactions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			transaction.Status = value.(models.TransactionStatus)
		case "amount":
			transaction.Amount = value.(float64)
		case "balance_before":
			transaction.BalanceBefore = value.(float64)
		case "balance_after":
			transaction.BalanceAfter = value.(float64)
		case "mpesa_receipt_number":
			transaction.MpesaReceiptNumber = value.(string)
		case "merchant_request_id":
			transaction.MerchantRequestID = value.(string)
		case "checkout_request_id":
			transaction.CheckoutRequestID = value.(string)
		case "provider_session_id":
			transaction.ProviderSessionID = value.(string)
		case "result_code":
			code := value.(int)
			transaction.ResultCode = &code
		case "result_desc":
			transaction.ResultDesc = value.(string)
		}
	}
	return nil
}

func (f *fakeTransactionRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, transaction := range f.transactions {
		if transaction.CheckoutRequestID == correlationID || transaction.ProviderSessionID == correlationID {
			clone := *transaction
			return &clone, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (f *fakeTransactionRepo) GetByWalletID(ctx context.Context, walletID primitive.ObjectID, status models.TransactionStatus, params *utils.PaginationParams) ([]*models.Transaction, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var transactions []*models.Transaction
	for _, transaction := range f.transactions {
		if transaction.WalletID != walletID {
			continue
		}
		if status != "" && transaction.Status != status {
			continue
		}
		clone := *transaction
		transactions = append(transactions, &clone)
	}
	return transactions, int64(len(transactions)), nil
}

func (f *fakeTransactionRepo) GetRecentByWalletID(ctx context.Context, walletID primitive.ObjectID, limit int) ([]*models.Transaction, error) {
	transactions, _, err := f.GetByWalletID(ctx, walletID, "", nil)
	if err != nil {
		return nil, err
	}
	if len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

// fakeProvider is a scriptable payment.Provider.
type fakeProvider struct {
	mu            sync.Mutex
	initiateFunc  func(ctx context.Context, request *payment.InitiateRequest) (*payment.InitiateResponse, error)
	queryFunc     func(ctx context.Context, correlationID string) (*payment.StatusResult, error)
	initiateCalls []*payment.InitiateRequest
}

func (f *fakeProvider) Initiate(ctx context.Context, request *payment.InitiateRequest) (*payment.InitiateResponse, error) {
	f.mu.Lock()
	f.initiateCalls = append(f.initiateCalls, request)
	f.mu.Unlock()
	if f.initiateFunc != nil {
		return f.initiateFunc(ctx, request)
	}
	return &payment.InitiateResponse{
		ProviderRequestID: "merchant-1",
		CorrelationID:     "ws_CO_1",
	}, nil
}

func (f *fakeProvider) QueryStatus(ctx context.Context, correlationID string) (*payment.StatusResult, error) {
	if f.queryFunc != nil {
		return f.queryFunc(ctx, correlationID)
	}
	return nil, payment.ErrQueryNotSupported
}

// fakeNotifier records events synchronously.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(eventType string, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeNotifier) Close() {}
