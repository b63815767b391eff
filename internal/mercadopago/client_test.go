package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

type fakeConfigProvider struct {
	cfg *models.MercadoPagoConfig
	err error
}

func (f *fakeConfigProvider) GetMercadoPago(ctx context.Context) (*models.MercadoPagoConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cfg, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := &fakeConfigProvider{cfg: &models.MercadoPagoConfig{AccessToken: "TEST-token", Version: 1}}
	client := NewClient(provider, logrus.New())
	client.SetBaseURL(server.URL)
	return client, server
}

func TestClient_CreatePreference(t *testing.T) {
	var gotAuth string
	var gotReq PreferenceRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(PreferenceResponse{
			ID:        "pref-123",
			InitPoint: "https://mercadopago.com/checkout/pref-123",
		})
	})

	pref, err := client.CreatePreference(context.Background(), &PreferenceRequest{
		Items:             []PreferenceItem{{Title: "Anticipo", Quantity: 1, UnitPrice: 500, CurrencyID: "USD"}},
		Payer:             PreferencePayer{Name: "Cliente", Email: "cliente@softwarepar.lat"},
		ExternalReference: "stage-abc",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pref-123", pref.ID)
	assert.Equal(t, "https://mercadopago.com/checkout/pref-123", pref.InitPoint)

	assert.Equal(t, "Bearer TEST-token", gotAuth)
	assert.Equal(t, "stage-abc", gotReq.ExternalReference)
	assert.Equal(t, 500.0, gotReq.Items[0].UnitPrice)
}

func TestClient_CreatePreference_GatewayRejects(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	})

	_, err := client.CreatePreference(context.Background(), &PreferenceRequest{})
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrCodeGateway, appErr.Code)
}

func TestClient_GetPayment(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Payment{
			ID:                42,
			Status:            "approved",
			ExternalReference: "stage-abc",
			TransactionAmount: 500,
		})
	})

	payment, err := client.GetPayment(context.Background(), "42")
	assert.NoError(t, err)
	assert.Equal(t, "approved", payment.Status)
	assert.Equal(t, "stage-abc", payment.ExternalReference)
}

func TestClient_NotConfigured(t *testing.T) {
	provider := &fakeConfigProvider{err: repository.ErrGatewayConfigNotFound}
	client := NewClient(provider, logrus.New())

	_, err := client.CreatePreference(context.Background(), &PreferenceRequest{})
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrCodeNotConfigured, appErr.Code)

	assert.False(t, client.IsConfigured(context.Background()))
}

func TestClient_EmptyTokenTreatedAsNotConfigured(t *testing.T) {
	provider := &fakeConfigProvider{cfg: &models.MercadoPagoConfig{AccessToken: ""}}
	client := NewClient(provider, logrus.New())

	assert.False(t, client.IsConfigured(context.Background()))
}

func TestClient_ShortHTTPTimeout(t *testing.T) {
	client := NewClient(&fakeConfigProvider{}, logrus.New())

	// Шлюз опрашивается синхронно при выпуске ссылки, долгие зависания
	// недопустимы.
	assert.Equal(t, 5*time.Second, client.http.Timeout)
}

func TestClient_ReloadsConfigOnVersionBump(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(Payment{ID: 1, Status: "approved"})
	}))
	defer server.Close()

	provider := &fakeConfigProvider{cfg: &models.MercadoPagoConfig{AccessToken: "old-token", Version: 1}}
	client := NewClient(provider, logrus.New())
	client.SetBaseURL(server.URL)

	_, err := client.GetPayment(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, "Bearer old-token", gotAuth)

	// Смена версии в базе подхватывается без перезапуска.
	provider.cfg = &models.MercadoPagoConfig{AccessToken: "new-token", Version: 2}

	_, err = client.GetPayment(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, "Bearer new-token", gotAuth)
}
