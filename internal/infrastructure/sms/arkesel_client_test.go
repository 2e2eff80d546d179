package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsSenderAndRecipients(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/sms/send", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer srv.Close()

	client := NewArkeselClient(srv.URL+"/", "key-1", "Oysloe")
	err := client.Send(context.Background(), "Your ad is live", []string{"233200000000"})

	require.NoError(t, err)
	assert.Equal(t, "Oysloe", got.Sender)
	assert.Equal(t, []string{"233200000000"}, got.Recipients)
}

func TestSendReportsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","message":"invalid key"}`))
	}))
	defer srv.Close()

	err := NewArkeselClient(srv.URL, "bad", "Oysloe").Send(context.Background(), "hi", []string{"1"})
	assert.ErrorContains(t, err, "401")
}

func TestSendReportsUnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewArkeselClient(url, "k", "Oysloe").Send(context.Background(), "hi", []string{"1"})
	assert.Error(t, err)
}

func TestSendNeedsRecipients(t *testing.T) {
	err := NewArkeselClient("http://unused", "k", "Oysloe").Send(context.Background(), "hi", nil)
	assert.Error(t, err)
}
