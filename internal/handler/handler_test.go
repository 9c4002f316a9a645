package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/database"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/notify"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/payment"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/repository"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/service"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

const adminToken = "s3cret"

type stubCharger struct {
	mu      sync.Mutex
	amounts []int64
	err     error
}

func (s *stubCharger) Charge(_ context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amounts = append(s.amounts, req.Amount)
	if s.err != nil {
		return payment.Charge{}, s.err
	}
	return payment.Charge{ID: "pi_test", Amount: req.Amount}, nil
}

type stubSender struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (s *stubSender) Send(_ context.Context, msg notify.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return "msg", nil
}

type testServer struct {
	handler http.Handler
	charger *stubCharger
	mailer  *stubSender
	regs    *repository.SQLiteRegistrationRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := repository.NewSQLiteEventRepository(db)
	regs := repository.NewSQLiteRegistrationRepository(db)
	require.NoError(t, events.Upsert(ctx, &model.Event{
		ID:           "evt-winter",
		Tag:          model.TagWinter,
		Name:         "Winter Sled Dog Classic",
		Dates:        []string{"2027-01-16", "2027-01-17"},
		TrailFee:     1400,
		ISDRARaceFee: 600,
		Races: []model.Race{
			{ID: "R1", Sled: "6 Dog", Category: "Pro", Notes: []string{}, Price: 5000},
			{ID: "R2", Sled: "4 Dog", Category: "Sportsman", Notes: []string{}, Price: 3000, ISDRAFee: true},
		},
	}))

	ts := &testServer{charger: &stubCharger{}, mailer: &stubSender{}, regs: regs}
	composer := &notify.Composer{AdminTo: "admin@example.com", ContactTo: "contact@example.com"}
	metrics := telemetry.NewMetrics()

	h := NewEventHandler(
		service.NewEventService(events, regs),
		service.NewSubmitService(service.SubmitDeps{
			Events:        events,
			Registrations: regs,
			Payments:      ts.charger,
			Mailer:        ts.mailer,
			Composer:      composer,
			Metrics:       metrics,
		}),
		service.NewContactService(ts.mailer, composer, metrics),
	)
	ts.handler = NewRouter(h, RouterConfig{AdminToken: adminToken, Metrics: metrics})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func submitBody(races ...string) model.SubmitRequest {
	return model.SubmitRequest{
		EventTag:        "winter",
		PaymentMethodID: "pm_card_visa",
		FormValues: model.FormValues{
			FirstName:  "Jane",
			LastName:   "Musher",
			Gender:     "female",
			Email:      "jane@example.com",
			Phone:      "715-555-0134",
			City:       "Mountain",
			State:      "WI",
			Age:        "34",
			Races:      races,
			Cardholder: "Jane Musher",
		},
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEventRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []model.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Len(t, events[0].Races, 2)

	rec = ts.do(t, http.MethodGet, "/api/events/winter", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"registrations"`)

	rec = ts.do(t, http.MethodGet, "/api/events/fall", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"event not found"}`, rec.Body.String())
}

func TestCreateRegistrationAndConfirm(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/registrations", submitBody("R1", "R2", "bogus"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp model.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, `^\d{5}-\d{6}$`, resp.RegistrationID)
	assert.Equal(t, []int64{10000}, ts.charger.amounts)
	assert.Len(t, ts.mailer.sent, 2)

	rec = ts.do(t, http.MethodGet, "/api/events/winter/registrations/"+resp.RegistrationID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conf model.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.False(t, conf.NotFound)
	require.NotNil(t, conf.Registration)
	assert.Equal(t, []string{"R1", "R2"}, conf.Registration.Races)
	assert.Len(t, conf.Races, 2)
	assert.Equal(t, int64(10000), conf.Registration.Summary.Total)
}

func TestConfirmationNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/events/winter/registrations/00000-000000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var conf model.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.True(t, conf.NotFound)
	assert.Equal(t, "Winter Sled Dog Classic", conf.Name)

	rec = ts.do(t, http.MethodGet, "/api/events/spring/registrations/00000-000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"event not found"}`, rec.Body.String())
}

func TestCreateRegistrationErrors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		ts := newTestServer(t)
		body := submitBody("R1")
		body.FormValues.Age = "16"

		rec := ts.do(t, http.MethodPost, "/api/registrations", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var er model.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
		assert.Equal(t, "Guardian is required for anyone under 18", er.Fields["guardian"])
		assert.Empty(t, ts.charger.amounts)
	})

	t.Run("declined", func(t *testing.T) {
		ts := newTestServer(t)
		ts.charger.err = apperr.Declined("Your card has insufficient funds.", nil)

		rec := ts.do(t, http.MethodPost, "/api/registrations", submitBody("R1"))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.JSONEq(t, `{"error":"Your card has insufficient funds."}`, rec.Body.String())

		list, err := ts.regs.ListByEvent(context.Background(), model.TagWinter)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("infrastructure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.charger.err = apperr.Internal("charge card", assert.AnError)

		rec := ts.do(t, http.MethodPost, "/api/registrations", submitBody("R1"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Internal server error."}`, rec.Body.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		ts := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/registrations", strings.NewReader(`{"amount": 1}`))
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminListing(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/registrations", submitBody("R1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/events/winter/registrations", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/events/winter/registrations", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/events/winter/registrations", nil, "Authorization", "Bearer "+adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var regs []model.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regs))
	assert.Len(t, regs, 1)
}

func TestContactRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contact", model.ContactRequest{
		Name: "bot", Email: "bot@example.com", Message: "spam", HP: "filled",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"honeypot triggered"}`, rec.Body.String())
	assert.Empty(t, ts.mailer.sent)

	rec = ts.do(t, http.MethodPost, "/api/contact", model.ContactRequest{
		Name: "Sam", Email: "sam@example.com", Phone: "7155550100", Message: "Hello",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.Len(t, ts.mailer.sent, 1)
	assert.Equal(t, "sam@example.com", ts.mailer.sent[0].ReplyTo)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodOptions, "/api/registrations", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/api/events", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `route="/api/events`)
}
