package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tgcasino/config"
	"tgcasino/models"
	"tgcasino/service"
)

type testServer struct {
	dice  *MockDiceService
	mines *MockMinesService
	slots *MockSlotService
	srv   *Server
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, db Pinger) *testServer {
	t.Helper()
	ts := &testServer{
		dice:  new(MockDiceService),
		mines: new(MockMinesService),
		slots: new(MockSlotService),
	}
	ts.srv = New(config.ForTest(), NewHandler(ts.dice, ts.mines, ts.slots), db)
	t.Cleanup(func() {
		ts.dice.AssertExpectations(t)
		ts.mines.AssertExpectations(t)
		ts.slots.AssertExpectations(t)
	})
	return ts
}

func (ts *testServer) do(method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts = newTestServer(t, failingPinger{})
	rec = ts.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequireUser(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, header := range []string{"", "abc", "-5", "0"} {
		rec := ts.do(http.MethodPost, "/api/mines/cashout", header, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestDicePlay(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.dice.On("Play", mock.Anything, int64(7), mock.MatchedBy(func(bet decimal.Decimal) bool {
		return bet.Equal(decimal.NewFromInt(100))
	}), 50, models.DiceOver).Return(&models.DiceResult{
		Roll:       decimal.RequireFromString("75"),
		Win:        true,
		WinAmount:  decimal.RequireFromString("198"),
		Multiplier: decimal.RequireFromString("1.98"),
		NewBalance: decimal.RequireFromString("1298"),
	}, nil)

	rec := ts.do(http.MethodPost, "/api/dice/play", "7", `{"bet": 100, "chance": 50, "type": "over"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		IsSuccess bool              `json:"is_success"`
		Data      models.DiceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsSuccess)
	assert.True(t, resp.Data.Win)
	assert.True(t, resp.Data.NewBalance.Equal(decimal.NewFromInt(1298)))
}

func TestDicePlay_Validation(t *testing.T) {
	ts := newTestServer(t, nil)

	bodies := []string{
		`{"bet": 0.5, "chance": 50, "type": "over"}`,
		`{"bet": 10, "chance": 0, "type": "over"}`,
		`{"bet": 10, "chance": 100, "type": "over"}`,
		`{"bet": 10, "chance": 50, "type": "sideways"}`,
		`not json`,
	}
	for _, body := range bodies {
		rec := ts.do(http.MethodPost, "/api/dice/play", "7", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid_input", decodeError(t, rec).Error.ErrorCode, body)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
		{service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
		{service.ErrCannotCashout, http.StatusConflict, "cannot_cashout"},
		{fmt.Errorf("%w: cell 3", service.ErrCellAlreadyRevealed), http.StatusConflict, "cell_already_revealed"},
		{fmt.Errorf("%w: play: %w", service.ErrExternalProvider, context.DeadlineExceeded), http.StatusGatewayTimeout, "provider_timeout"},
		{fmt.Errorf("%w: play: boom", service.ErrExternalProvider), http.StatusBadGateway, "external_provider"},
		{service.ErrBankNotFound, http.StatusInternalServerError, "bank_not_found"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
		{fmt.Errorf("failed to lock user: %w", context.DeadlineExceeded), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.mines.On("Cashout", mock.Anything, int64(9)).Return(nil, tc.err)

			rec := ts.do(http.MethodPost, "/api/mines/cashout", "9", "")
			assert.Equal(t, tc.status, rec.Code)

			resp := decodeError(t, rec)
			assert.False(t, resp.IsSuccess)
			assert.Equal(t, tc.code, resp.Error.ErrorCode)
			assert.Equal(t, "/api/mines/cashout", resp.Error.Path)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "Internal Server Error", resp.Error.ErrorMessage)
			}
		})
	}
}

func TestMinesPick(t *testing.T) {
	t.Run("safe cell returns state", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.mines.On("Pick", mock.Anything, int64(3), 0).Return(&models.MinesPickResult{
			State: &models.MinesState{Status: models.MinesStatusPlaying, Step: 1, Revealed: []int{0}},
		}, nil)

		rec := ts.do(http.MethodPost, "/api/mines/pick", "3", `{"cellId": 0}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"status":"playing"`)
	})

	t.Run("mine returns loss", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.mines.On("Pick", mock.Anything, int64(3), 4).Return(&models.MinesPickResult{
			Loss: &models.MinesLoss{Status: models.MinesStatusLost, Mines: []int{4, 5, 6}, CellID: 4},
		}, nil)

		rec := ts.do(http.MethodPost, "/api/mines/pick", "3", `{"cellId": 4}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"lost"`)
		assert.Contains(t, rec.Body.String(), `"cellId":4`)
	})

	t.Run("cell out of range", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(http.MethodPost, "/api/mines/pick", "3", `{"cellId": 25}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ts.do(http.MethodPost, "/api/mines/pick", "3", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMinesStartAndMultipliers(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.mines.On("Start", mock.Anything, int64(3), mock.Anything, 3).Return(&models.MinesState{Status: models.MinesStatusPlaying}, nil)
	ts.mines.On("GetMultiplierLadder", mock.Anything, mock.Anything, 3).Return([]models.LadderStep{
		{Step: 1, Multiplier: decimal.RequireFromString("1.08")},
	}, nil)

	rec := ts.do(http.MethodPost, "/api/mines/start", "3", `{"bet": "100", "mines": 3}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/mines/multipliers", "3", `{"bet": 100, "mines": 3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"multipliers"`)

	rec = ts.do(http.MethodPost, "/api/mines/start", "3", `{"bet": 100, "mines": 25}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMinesState_NoActiveRound(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.mines.On("GetState", mock.Anything, int64(3)).Return(nil, service.ErrNoActiveRound)

	rec := ts.do(http.MethodGet, "/api/mines/state", "3", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSlotSession(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.slots.On("CreateSession", mock.Anything, int64(11)).Return(&models.ProviderSession{SessionUUID: "s-1"}, nil)

	rec := ts.do(http.MethodGet, "/slots/session", "11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session":"s-1"`)
}

func TestWalletPlay(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.slots.On("Play", mock.Anything, mock.MatchedBy(func(req models.SlotPlayRequest) bool {
		return req.UserID == 11 && req.Amount == 10000000 && req.Mode == models.SlotModeNormal &&
			req.SessionID == "s-1" && req.IdempotencyKey == "idem-1"
	})).Return(&models.SlotPlayResult{
		NewBalance:     decimal.RequireFromString("5990"),
		ProviderResult: map[string]any{"round": map[string]any{"payoutMultiplier": 500}},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/wallet/play",
		strings.NewReader(`{"amount": 10000000, "mode": "NORMAL", "sessionID": "s-1", "currency": "RUB"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "11")
	req.Header.Set("Idempotency-Key", "idem-1")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "round")
	assert.Contains(t, body, "updated_balance")

	var balance decimal.Decimal
	require.NoError(t, json.Unmarshal(body["updated_balance"], &balance))
	assert.True(t, balance.Equal(decimal.NewFromInt(5990)))
}

func TestWalletPlay_Validation(t *testing.T) {
	ts := newTestServer(t, nil)

	bodies := []string{
		`{"amount": 0, "mode": "NORMAL", "sessionID": "s", "currency": "RUB"}`,
		`{"amount": 10, "mode": "TURBO", "sessionID": "s", "currency": "RUB"}`,
		`{"amount": 10, "mode": "NORMAL", "currency": "RUB"}`,
	}
	for _, body := range bodies {
		rec := ts.do(http.MethodPost, "/wallet/play", "11", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestWalletRelays(t *testing.T) {
	ts := newTestServer(t, nil)
	payload := map[string]any{"sessionID": "s-1"}
	for _, method := range []string{"Authenticate", "Balance", "EndRound"} {
		ts.slots.On(method, mock.Anything, int64(11), payload).Return(map[string]any{"call": method}, nil).Once()
	}

	for path, method := range map[string]string{
		"/wallet/authenticate": "Authenticate",
		"/wallet/balance":      "Balance",
		"/wallet/end-round":    "EndRound",
	} {
		rec := ts.do(http.MethodPost, path, "11", `{"sessionID": "s-1"}`)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, fmt.Sprintf(`{"call": %q}`, method), rec.Body.String())
	}
}

func TestRecovery(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.mines.On("Cashout", mock.Anything, int64(1)).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(nil, nil)

	rec := ts.do(http.MethodPost, "/api/mines/cashout", "1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeError(t, rec).Error.ErrorCode)
}
