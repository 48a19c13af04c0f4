package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"barberbot/internal/conversation"
	"barberbot/internal/model"
)

type mockTurns struct {
	mock.Mock
}

func (m *mockTurns) HandleTurn(ctx context.Context, key, message string) (conversation.Turn, error) {
	args := m.Called(ctx, key, message)
	return args.Get(0).(conversation.Turn), args.Error(1)
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat/web", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChatWeb(t *testing.T) {
	turns := new(mockTurns)
	h := NewHandler(turns, zerolog.Nop())

	turns.On("HandleTurn", mock.Anything, "web:alice", "oi").Return(conversation.Turn{
		Reply:   "Olá!",
		State:   "START",
		Buttons: []model.Button{{ID: "agendar", Label: "Agendar"}},
	}, nil).Once()

	w := post(h, `{"client_id":"alice","message":"oi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Olá!", resp.Reply)
	assert.Equal(t, "START", resp.State)
	assert.Equal(t, []model.Button{{ID: "agendar", Label: "Agendar"}}, resp.Buttons)
	turns.AssertExpectations(t)
}

func TestChatWebEmptyButtonsRenderAsArray(t *testing.T) {
	turns := new(mockTurns)
	h := NewHandler(turns, zerolog.Nop())
	turns.On("HandleTurn", mock.Anything, "web:bob", "20/05").
		Return(conversation.Turn{Reply: "Que horas?", State: "WAIT_TIME_PREF"}, nil)

	w := post(h, `{"client_id":"bob","message":"20/05"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"buttons":[]`)
}

func TestChatWebRejectsBadBodies(t *testing.T) {
	h := NewHandler(new(mockTurns), zerolog.Nop())

	tests := []struct {
		name string
		body string
	}{
		{"NotJSON", `hello`},
		{"MissingClient", `{"message":"oi"}`},
		{"EmptyMessage", `{"client_id":"alice","message":""}`},
		{"TooLongClient", `{"client_id":"` + strings.Repeat("x", 129) + `","message":"oi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestChatWebTurnFailure(t *testing.T) {
	turns := new(mockTurns)
	h := NewHandler(turns, zerolog.Nop())
	turns.On("HandleTurn", mock.Anything, "web:alice", "oi").
		Return(conversation.Turn{}, errors.Join(conversation.ErrTurnTimeout, errors.New("deadline")))

	w := post(h, `{"client_id":"alice","message":"oi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
