package services

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.MigrateWith(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	user := models.User{
		FullName: "Test " + role,
		Email:    uuid.New().String() + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(&user).Error)
	if role == models.RoleFreelancer {
		profile := models.FreelancerProfile{UserID: user.ID, Status: models.FreelancerStatusApproved}
		require.NoError(t, db.Create(&profile).Error)
	}
	return user
}

func createTestService(t *testing.T, db *gorm.DB, freelancerID uuid.UUID, price float64) models.Service {
	t.Helper()
	svc := models.Service{
		FreelancerID: freelancerID,
		Title:        "Logo design",
		Price:        price,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&svc).Error)
	return svc
}

func openDate(t *testing.T, db *gorm.DB, freelancerID uuid.UUID, date string) {
	t.Helper()
	parsed, err := time.Parse(time.DateOnly, date)
	require.NoError(t, err)
	entry := models.FreelancerAvailability{
		UserID: freelancerID,
		Date:   datatypes.Date(parsed),
		Type:   models.AvailabilityTypeAvailable,
	}
	require.NoError(t, db.Create(&entry).Error)
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(time.DateOnly)
}

type workflowFixture struct {
	db         *gorm.DB
	storage    *MemoryStorage
	wf         *OrderWorkflow
	customer   models.User
	freelancer models.User
	service    models.Service
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	db := setupTestDB(t)
	storage := NewMemoryStorage()
	f := &workflowFixture{
		db:      db,
		storage: storage,
		wf:      NewOrderWorkflow(db, storage),
	}
	f.customer = createTestUser(t, db, models.RoleCustomer)
	f.freelancer = createTestUser(t, db, models.RoleFreelancer)
	f.service = createTestService(t, db, f.freelancer.ID, 100.00)
	return f
}

func (f *workflowFixture) customerActor() Actor {
	return Actor{ID: f.customer.ID, Role: models.RoleCustomer}
}

func (f *workflowFixture) freelancerActor() Actor {
	return Actor{ID: f.freelancer.ID, Role: models.RoleFreelancer}
}

func (f *workflowFixture) adminActor(t *testing.T) Actor {
	admin := createTestUser(t, f.db, models.RoleAdmin)
	return Actor{ID: admin.ID, Role: models.RoleAdmin}
}

func (f *workflowFixture) createOrder(t *testing.T, date string) *models.Order {
	t.Helper()
	openDate(t, f.db, f.freelancer.ID, date)
	order, err := f.wf.CreateOrder(f.customerActor(), CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrder(t *testing.T) {
	f := newWorkflowFixture(t)
	date := futureDate(7)
	openDate(t, f.db, f.freelancer.ID, date)

	order, err := f.wf.CreateOrder(f.customerActor(), CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, f.customer.ID, order.CustomerID)
	assert.Equal(t, f.freelancer.ID, order.FreelancerID)
	assert.Equal(t, 100.00, order.AgreedPrice)
	assert.Regexp(t, regexp.MustCompile(`^OCH-\d{8}-[A-Z0-9]{6}$`), order.OrderNumber)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	openDate(t, f.db, f.freelancer.ID, futureDate(7))

	tests := []struct {
		name  string
		input CreateOrderInput
	}{
		{
			name:  "malformed date",
			input: CreateOrderInput{ServiceID: f.service.ID, BookingDate: "01/06/2026"},
		},
		{
			name:  "past date",
			input: CreateOrderInput{ServiceID: f.service.ID, BookingDate: "2020-01-01"},
		},
		{
			name:  "unknown service",
			input: CreateOrderInput{ServiceID: uuid.New(), BookingDate: futureDate(7)},
		},
		{
			name: "negative price",
			input: CreateOrderInput{
				ServiceID: f.service.ID, BookingDate: futureDate(7),
				AgreedPrice: floatPtr(-5),
			},
		},
		{
			name: "more than two decimal places",
			input: CreateOrderInput{
				ServiceID: f.service.ID, BookingDate: futureDate(7),
				AgreedPrice: floatPtr(10.005),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.wf.CreateOrder(f.customerActor(), tc.input)
			var validation *ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestCreateOrderRequiresOpenDate(t *testing.T) {
	f := newWorkflowFixture(t)

	// The freelancer never opened this date, so a customer booking conflicts.
	_, err := f.wf.CreateOrder(f.customerActor(), CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: futureDate(7),
	})
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	// An admin booking skips the calendar entirely.
	other := createTestUser(t, f.db, models.RoleCustomer)
	order, err := f.wf.CreateOrder(f.adminActor(t), CreateOrderInput{
		CustomerID:  other.ID,
		ServiceID:   f.service.ID,
		BookingDate: futureDate(7),
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, order.CustomerID)
}

func TestCreateOrderRoleGate(t *testing.T) {
	f := newWorkflowFixture(t)
	openDate(t, f.db, f.freelancer.ID, futureDate(7))

	_, err := f.wf.CreateOrder(f.freelancerActor(), CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: futureDate(7),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDoubleBookingRejected(t *testing.T) {
	f := newWorkflowFixture(t)
	date := futureDate(10)
	f.createOrder(t, date)

	second := createTestUser(t, f.db, models.RoleCustomer)
	_, err := f.wf.CreateOrder(Actor{ID: second.ID, Role: models.RoleCustomer}, CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestDoubleBookingAllowedAfterCancellation(t *testing.T) {
	f := newWorkflowFixture(t)
	date := futureDate(10)
	order := f.createOrder(t, date)

	_, err := f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusCancelled, nil)
	require.NoError(t, err)

	second := createTestUser(t, f.db, models.RoleCustomer)
	reborn, err := f.wf.CreateOrder(Actor{ID: second.ID, Role: models.RoleCustomer}, CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingPayment, reborn.Status)
	assert.NotEqual(t, order.OrderNumber, reborn.OrderNumber)
}

func TestOrderNumbersAreUnique(t *testing.T) {
	f := newWorkflowFixture(t)

	seen := make(map[string]bool)
	for i := 1; i <= 5; i++ {
		order := f.createOrder(t, futureDate(i))
		assert.False(t, seen[order.OrderNumber], "duplicate order number %s", order.OrderNumber)
		seen[order.OrderNumber] = true
	}
}

func TestUploadPaymentSlip(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.createOrder(t, futureDate(7))

	updated, err := f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("slip-bytes"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingApproval, updated.Status)
	assert.NotNil(t, updated.PaymentSlip)
	assert.NotNil(t, updated.PaymentSlipUploadedAt)
	assert.True(t, f.storage.Has(*updated.PaymentSlip))
}

func TestUploadPaymentSlipOnlyFromPendingPayment(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.createOrder(t, futureDate(7))

	_, err := f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("first"))
	require.NoError(t, err)

	_, err = f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("second"))
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	// The failed upload must not leak a stored file or touch the order.
	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPendingApproval, reloaded.Status)
	assert.Equal(t, 1, f.storage.Count())
}

func TestUploadPaymentSlipReplacesPriorFile(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.createOrder(t, futureDate(7))

	first, err := f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("first"))
	require.NoError(t, err)
	firstPath := *first.PaymentSlip

	// An admin pushing the order back to pending_payment lets the customer
	// upload a corrected slip; the old file must be removed.
	_, err = f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusPendingPayment, nil)
	require.NoError(t, err)

	second, err := f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("second"))
	require.NoError(t, err)
	assert.NotEqual(t, firstPath, *second.PaymentSlip)
	assert.False(t, f.storage.Has(firstPath))
	assert.True(t, f.storage.Has(*second.PaymentSlip))
}

func TestUploadPaymentSlipOwnershipRequired(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.createOrder(t, futureDate(7))

	stranger := createTestUser(t, f.db, models.RoleCustomer)
	_, err := f.wf.UploadPaymentSlip(context.Background(), Actor{ID: stranger.ID, Role: models.RoleCustomer}, order.ID, strings.NewReader("slip"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 0, f.storage.Count())
}

func (f *workflowFixture) orderInApproval(t *testing.T, date string) *models.Order {
	t.Helper()
	order := f.createOrder(t, date)
	updated, err := f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("slip"))
	require.NoError(t, err)
	return updated
}

func TestAcceptCreatesConversation(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.orderInApproval(t, futureDate(7))

	accepted, err := f.wf.Accept(f.freelancerActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusActive, accepted.Status)
	assert.NotNil(t, accepted.FreelancerRespondedAt)

	var conversations []models.Conversation
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&conversations).Error)
	require.Len(t, conversations, 1)
	assert.Equal(t, models.ConversationTypeOrder, conversations[0].Type)
	assert.True(t, conversations[0].HasParticipant(f.customer.ID))
	assert.True(t, conversations[0].HasParticipant(f.freelancer.ID))
}

func TestAcceptTwiceDoesNotDuplicateConversation(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.orderInApproval(t, futureDate(7))

	_, err := f.wf.Accept(f.freelancerActor(), order.ID)
	require.NoError(t, err)

	// A straight second accept fails on status; force the order back and
	// accept again to prove conversation creation is idempotent.
	_, err = f.wf.Accept(f.freelancerActor(), order.ID)
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusPendingApproval, nil)
	require.NoError(t, err)
	_, err = f.wf.Accept(f.freelancerActor(), order.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Conversation{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRejectOnlyFromPendingApproval(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.createOrder(t, futureDate(7))

	reason := "fully booked that week"
	_, err := f.wf.Reject(f.freelancerActor(), order.ID, &reason)
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	inApproval := f.orderInApproval(t, futureDate(8))
	rejected, err := f.wf.Reject(f.freelancerActor(), inApproval.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRejected, rejected.Status)
	assert.Equal(t, reason, *rejected.CancellationReason)
}

func TestDeliverOnlyFromActive(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.orderInApproval(t, futureDate(7))

	_, err := f.wf.Deliver(f.freelancerActor(), order.ID)
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = f.wf.Accept(f.freelancerActor(), order.ID)
	require.NoError(t, err)

	delivered, err := f.wf.Deliver(f.freelancerActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
}

func (f *workflowFixture) deliveredOrder(t *testing.T, date string) *models.Order {
	t.Helper()
	order := f.orderInApproval(t, date)
	_, err := f.wf.Accept(f.freelancerActor(), order.ID)
	require.NoError(t, err)
	delivered, err := f.wf.Deliver(f.freelancerActor(), order.ID)
	require.NoError(t, err)
	return delivered
}

func TestCompleteCreatesExactlyOneReview(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.deliveredOrder(t, futureDate(7))

	completed, review, err := f.wf.Complete(f.customerActor(), order.ID, 5, "great work")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, 5, review.Rating)

	_, _, err = f.wf.Complete(f.customerActor(), order.ID, 4, "again")
	var conflict *StateConflictError
	assert.ErrorAs(t, err, &conflict)

	var count int64
	require.NoError(t, f.db.Model(&models.Review{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var profile models.FreelancerProfile
	require.NoError(t, f.db.First(&profile, "user_id = ?", f.freelancer.ID).Error)
	assert.EqualValues(t, 5, profile.AvgRating)
}

func TestCompleteRatingRange(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.deliveredOrder(t, futureDate(7))

	for _, rating := range []int{0, 6, -1} {
		_, _, err := f.wf.Complete(f.customerActor(), order.ID, rating, "")
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation, "rating %d must be rejected", rating)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.orderInApproval(t, futureDate(7))

	otherFreelancer := createTestUser(t, f.db, models.RoleFreelancer)
	wrongOwner := Actor{ID: otherFreelancer.ID, Role: models.RoleFreelancer}

	_, err := f.wf.Accept(wrongOwner, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.wf.Reject(wrongOwner, order.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// The customer cannot act for the freelancer and vice versa.
	_, err = f.wf.Accept(f.customerActor(), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = f.wf.Complete(f.freelancerActor(), order.ID, 5, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.wf.AdminUpdateStatus(f.customerActor(), order.ID, models.OrderStatusCancelled, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	err = f.wf.AdminDestroyOrder(context.Background(), f.customerActor(), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPendingApproval, reloaded.Status)
}

func TestAdminUpdateBypassesTransitionOrder(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.orderInApproval(t, futureDate(7))

	completed, err := f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
}

func TestAdminUpdateCancelledSetsReason(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.createOrder(t, futureDate(7))

	cancelled, err := f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "Cancelled by an administrator", *cancelled.CancellationReason)

	_, err = f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, "exploded", nil)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestAdminDestroyOrderRemovesFiles(t *testing.T) {
	f := newWorkflowFixture(t)
	order := f.deliveredOrder(t, futureDate(7))
	_, _, err := f.wf.Complete(f.customerActor(), order.ID, 4, "fine")
	require.NoError(t, err)

	var reloaded models.Order
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	slipPath := *reloaded.PaymentSlip

	require.NoError(t, f.wf.AdminDestroyOrder(context.Background(), f.adminActor(t), order.ID))

	assert.False(t, f.storage.Has(slipPath))
	var orderCount, reviewCount int64
	f.db.Model(&models.Order{}).Where("id = ?", order.ID).Count(&orderCount)
	f.db.Model(&models.Review{}).Where("order_id = ?", order.ID).Count(&reviewCount)
	assert.EqualValues(t, 0, orderCount)
	assert.EqualValues(t, 0, reviewCount)
}

func TestFullLifecycle(t *testing.T) {
	f := newWorkflowFixture(t)
	date := futureDate(14)

	order := f.createOrder(t, date)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)

	// A rival booking for the same date must fail while the first is alive.
	rival := createTestUser(t, f.db, models.RoleCustomer)
	_, err := f.wf.CreateOrder(Actor{ID: rival.ID, Role: models.RoleCustomer}, CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)

	order, err = f.wf.UploadPaymentSlip(context.Background(), f.customerActor(), order.ID, strings.NewReader("slip"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingApproval, order.Status)

	order, err = f.wf.Accept(f.freelancerActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusActive, order.Status)

	order, err = f.wf.Deliver(f.freelancerActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)

	order, review, err := f.wf.Complete(f.customerActor(), order.ID, 5, "perfect")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, 5, review.Rating)

	// Completed still occupies the date; only cancellation frees it.
	_, err = f.wf.CreateOrder(Actor{ID: rival.ID, Role: models.RoleCustomer}, CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	require.ErrorAs(t, err, &conflict)

	_, err = f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusCancelled, nil)
	require.NoError(t, err)

	_, err = f.wf.CreateOrder(Actor{ID: rival.ID, Role: models.RoleCustomer}, CreateOrderInput{
		ServiceID:   f.service.ID,
		BookingDate: date,
	})
	require.NoError(t, err)
}

func TestCancelStale(t *testing.T) {
	f := newWorkflowFixture(t)
	stale := f.createOrder(t, futureDate(7))
	fresh := f.createOrder(t, futureDate(8))

	old := time.Now().AddDate(0, 0, -5)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", stale.ID).
		UpdateColumn("created_at", old).Error)

	cancelled, err := f.wf.CancelStale(time.Now().AddDate(0, 0, -3))
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, stale.ID, cancelled[0].ID)

	var reloadedStale, reloadedFresh models.Order
	require.NoError(t, f.db.First(&reloadedStale, "id = ?", stale.ID).Error)
	require.NoError(t, f.db.First(&reloadedFresh, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, reloadedStale.Status)
	assert.Equal(t, "Payment was not received in time", *reloadedStale.CancellationReason)
	assert.Equal(t, models.OrderStatusPendingPayment, reloadedFresh.Status)
}

func TestIsDateFree(t *testing.T) {
	f := newWorkflowFixture(t)
	date := futureDate(9)
	order := f.createOrder(t, date)

	parsed, _ := time.Parse(time.DateOnly, date)
	free, err := f.wf.IsDateFree(f.freelancer.ID, parsed)
	require.NoError(t, err)
	assert.False(t, free)

	_, err = f.wf.AdminUpdateStatus(f.adminActor(t), order.ID, models.OrderStatusRejected, nil)
	require.NoError(t, err)

	free, err = f.wf.IsDateFree(f.freelancer.ID, parsed)
	require.NoError(t, err)
	assert.True(t, free)
}
