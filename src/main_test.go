package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"qrshop/src/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const whsecret = "whsec_test_secret"

type TestSuite struct {
	suite.Suite
	Mock sqlmock.Sqlmock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	os.Setenv("STRIPE_WEBHOOK_SECRET", whsecret)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("salemode", saleModeValidatorFunc)
	}
}

func (s *TestSuite) SetupTest() {
	d, mock := NewMockDB()
	db.NewDB(d)
	s.Mock = mock
}

// signedWebhookRequest signs payload the way the processor does: an HMAC of
// "<unix ts>.<payload>" carried in the Stripe-Signature header.
func signedWebhookRequest(payload []byte) *http.Request {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, whsecret)
	req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig)))
	return req
}

func eventPayload(id, eventType string, object map[string]any) []byte {
	raw, _ := json.Marshal(map[string]any{
		"id":          id,
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	return raw
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestCheckoutValidation() {
	router := setupRouter()
	checkoutRoutes(router)

	s.Run("Should reject a request with missing fields", func() {
		w := httptest.NewRecorder()
		body := map[string]any{"handle": "demo-barber"}
		raw, _ := json.Marshal(&body)
		req, _ := http.NewRequest("POST", "/api/v1/checkout", strings.NewReader(string(raw)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		assert.Equal(s.T(), "MISSING_FIELDS", gjson.Get(w.Body.String(), "error").String())
	})

	s.Run("Should reject an unknown sale mode", func() {
		w := httptest.NewRecorder()
		body := map[string]any{
			"handle":     "demo-barber",
			"mode":       "subscription",
			"item_title": "Haircut",
			"item_price": "35",
		}
		raw, _ := json.Marshal(&body)
		req, _ := http.NewRequest("POST", "/api/v1/checkout", strings.NewReader(string(raw)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestSlotGenerateRequiresAuth() {
	router := setupRouter()
	slotRoutes(router)

	body, _ := json.Marshal(map[string]any{"handle": "demo-barber"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/slots/generate", strings.NewReader(string(body)))
	router.ServeHTTP(w, req)

	// inventory rewrites are owner-only; anonymous callers never reach the db
	assert.Equal(s.T(), 401, w.Code)
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestWebhookRejectsBadSignature() {
	router := setupRouter()
	stripeWebhookRoute(router)

	payload := eventPayload("evt_1", "checkout.session.completed", map[string]any{"id": "cs_test_1"})

	s.Run("Should reject a missing signature", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(string(payload)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a signature under the wrong secret", func() {
		ts := time.Now()
		sig := webhook.ComputeSignature(ts, payload, "whsec_other")
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(string(payload)))
		req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestWebhookAcknowledgesForeignEvents() {
	router := setupRouter()
	stripeWebhookRoute(router)

	payload := eventPayload("evt_2", "invoice.paid", map[string]any{"id": "in_1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(payload))

	assert.Equal(s.T(), 200, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "received").Bool())
	// no database traffic for events outside the state machine
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestWebhookDuplicateDelivery() {
	router := setupRouter()
	stripeWebhookRoute(router)

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`INSERT INTO "webhook_events"`).
		WillReturnError(fmt.Errorf(`ERROR: duplicate key value violates unique constraint "webhook_events_pkey" (SQLSTATE 23505)`))
	s.Mock.ExpectRollback()

	payload := eventPayload("evt_3", "checkout.session.completed", map[string]any{
		"id":       "cs_test_3",
		"metadata": map[string]any{"handle": "demo-barber", "order_id": "11111111-1111-1111-1111-111111111111"},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(payload))

	// replay is acknowledged without touching order state
	assert.Equal(s.T(), 200, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "duplicate").Bool())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestWebhookSessionWithoutIds() {
	router := setupRouter()
	stripeWebhookRoute(router)

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`INSERT INTO "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	payload := eventPayload("evt_4", "checkout.session.completed", map[string]any{
		"id":       "cs_test_4",
		"metadata": map[string]any{"handle": "demo-barber"},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(payload))

	assert.Equal(s.T(), 200, w.Code)
	body := w.Body.String()
	assert.Equal(s.T(), "demo-barber", gjson.Get(body, "handle").String())
	assert.False(s.T(), gjson.Get(body, "wroteOrder").Bool())
	assert.False(s.T(), gjson.Get(body, "wroteBooking").Bool())
	assert.False(s.T(), gjson.Get(body, "wroteTip").Bool())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestWebhookUnknownOrderIdStaysAcknowledged() {
	router := setupRouter()
	stripeWebhookRoute(router)

	orderID := "22222222-2222-2222-2222-222222222222"

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`INSERT INTO "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()
	s.Mock.ExpectQuery(`SELECT \* FROM "orders" WHERE \(id = \$1 AND handle = \$2\) AND "orders"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "status"}))

	payload := eventPayload("evt_5", "checkout.session.completed", map[string]any{
		"id":       "cs_test_5",
		"metadata": map[string]any{"handle": "demo-barber", "order_id": orderID},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(payload))

	assert.Equal(s.T(), 200, w.Code)
	body := w.Body.String()
	assert.False(s.T(), gjson.Get(body, "wroteOrder").Bool())
	assert.Equal(s.T(), int64(1), gjson.Get(body, "warnings.#").Int())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestWebhookLeavesCancelledBookingAlone() {
	router := setupRouter()
	stripeWebhookRoute(router)

	bookingID := "55555555-5555-5555-5555-555555555555"

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`INSERT INTO "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()
	// the load is the only traffic; no booking or slot update may follow
	s.Mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE \(id = \$1 AND handle = \$2\) AND "bookings"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "slot_id", "status"}).
			AddRow(bookingID, "demo-barber", 7, "cancelled"))

	payload := eventPayload("evt_7", "checkout.session.completed", map[string]any{
		"id": "cs_test_7",
		"metadata": map[string]any{
			"handle":     "demo-barber",
			"booking_id": bookingID,
		},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(payload))

	assert.Equal(s.T(), 200, w.Code)
	body := w.Body.String()
	assert.False(s.T(), gjson.Get(body, "wroteBooking").Bool())
	assert.Equal(s.T(), int64(1), gjson.Get(body, "warnings.#").Int())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestWebhookFulfillsOrder() {
	router := setupRouter()
	stripeWebhookRoute(router)

	orderID := "33333333-3333-3333-3333-333333333333"

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`INSERT INTO "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()
	s.Mock.ExpectQuery(`SELECT \* FROM "orders" WHERE \(id = \$1 AND handle = \$2\) AND "orders"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "mode", "item_title", "amount_cents", "currency", "status"}).
			AddRow(orderID, "demo-barber", "services", "Haircut", 3500, "usd", "pending"))
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()
	// owner summary resolution and enqueue
	s.Mock.ExpectQuery(`SELECT \* FROM "sites" WHERE handle = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "contact_email", "config"}).
			AddRow(1, "demo-barber", "owner@example.com", []byte(`{"notify_email":"owner@example.com"}`)))
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`INSERT INTO "outbox_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("44444444-4444-4444-4444-444444444444"))
	s.Mock.ExpectCommit()

	payload := eventPayload("evt_6", "checkout.session.completed", map[string]any{
		"id":             "cs_test_6",
		"payment_intent": "pi_test_6",
		"metadata": map[string]any{
			"handle":       "demo-barber",
			"mode":         "services",
			"item_title":   "Haircut",
			"amount_cents": "3500",
			"order_id":     orderID,
		},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(payload))

	assert.Equal(s.T(), 200, w.Code)
	body := w.Body.String()
	assert.True(s.T(), gjson.Get(body, "wroteOrder").Bool())
	assert.Equal(s.T(), int64(0), gjson.Get(body, "warnings.#").Int())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func TestSuiteRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(TestSuite))
}
