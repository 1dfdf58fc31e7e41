package client_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propflow/internal/common/api"
	"propflow/internal/common/middleware"
	"propflow/internal/common/money"
	"propflow/internal/payment"
	"propflow/internal/purchase/client"
)

func newClient(t *testing.T, handler http.HandlerFunc) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return client.New(client.Config{BaseURL: srv.URL + "/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreatePaymentIntent(t *testing.T) {
	var got payment.IntentRequest
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/create-intent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "corr-1", r.Header.Get("X-Correlation-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		api.WriteData(w, http.StatusCreated, payment.IntentResponse{
			PaymentIntent: payment.Intent{ID: "pi_1", Amount: got.Amount, Status: "created"},
		})
	})

	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
	resp, err := c.CreatePaymentIntent(ctx, &payment.IntentRequest{
		PropertyID:    "prop-1",
		PaymentType:   payment.TypeReservationFee,
		PaymentMethod: payment.MethodCreditCard,
		Amount:        money.FromMajor(3500, money.EUR),
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_1", resp.PaymentIntent.ID)
	assert.Equal(t, money.FromMajor(3500, money.EUR), resp.PaymentIntent.Amount)
	assert.Equal(t, "prop-1", got.PropertyID)
}

func TestCreatePaymentIntentWithoutID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		api.WriteData(w, http.StatusCreated, payment.IntentResponse{})
	})

	_, err := c.CreatePaymentIntent(context.Background(), &payment.IntentRequest{})
	assert.Error(t, err)
}

func TestCreateReservation(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reservations", r.URL.Path)
		assert.Empty(t, r.Header.Get("X-Correlation-ID"))

		var req payment.ReservationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pi_1", req.PaymentIntentID)

		api.WriteData(w, http.StatusCreated, payment.ReservationResponse{
			Reservation: payment.Reservation{ID: "res_1", ReservationNumber: "RES-2024-ABC123"},
		})
	})

	resp, err := c.CreateReservation(context.Background(), &payment.ReservationRequest{PaymentIntentID: "pi_1"})
	require.NoError(t, err)
	assert.Equal(t, "res_1", resp.Reservation.ID)
	assert.Equal(t, "RES-2024-ABC123", resp.Reservation.ReservationNumber)
}

func TestConfirmPayment(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/confirm", r.URL.Path)
		api.WriteData(w, http.StatusOK, payment.ConfirmResponse{
			Transaction: payment.Transaction{ID: "txn_1", Status: payment.StatusCompleted},
		})
	})

	resp, err := c.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
		PaymentIntentID: "pi_1",
		PaymentMethodID: payment.MethodCreditCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "txn_1", resp.Transaction.ID)
	assert.Nil(t, resp.Reservation)
}

func TestErrorResponses(t *testing.T) {
	t.Run("error envelope", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			api.Conflict(w, "payment intent cannot be confirmed")
		})

		_, err := c.ConfirmPayment(context.Background(), &payment.ConfirmRequest{})

		var statusErr *client.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
		assert.Equal(t, "/payments/confirm", statusErr.Path)
		assert.Equal(t, "payment intent cannot be confirmed", statusErr.Error())
	})

	t.Run("plain text body", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})

		_, err := c.CreateReservation(context.Background(), &payment.ReservationRequest{})

		var statusErr *client.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, "/reservations returned status 502", statusErr.Error())
	})

	t.Run("malformed success body", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("not json"))
		})

		_, err := c.ConfirmPayment(context.Background(), &payment.ConfirmRequest{})
		assert.ErrorContains(t, err, "decode response")
	})
}
