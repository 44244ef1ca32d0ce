package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient("", "123")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient("token", " ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c, err := newClient(srv.URL, "TOKEN", "-1001", srv.Client())
	require.NoError(t, err)

	require.NoError(t, c.SendMessage(context.Background(), "<b>Pesanan baru</b>"))
	assert.Equal(t, "-1001", got.ChatID)
	assert.Equal(t, "<b>Pesanan baru</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c, err := newClient(srv.URL, "TOKEN", "-1001", srv.Client())
	require.NoError(t, err)

	err = c.SendMessage(context.Background(), "halo")
	assert.ErrorContains(t, err, "chat not found")
}

func TestSendMessage_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := newClient(url, "SECRET-TOKEN", "-1001", &http.Client{})
	require.NoError(t, err)

	err = c.SendMessage(context.Background(), "halo")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}
