package telepush

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{RecipientToken: "tok", BaseURL: "::not a url"})
	require.Error(t, err)

	n, err := New(Config{RecipientToken: "tok"})
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL+"/tok", n.endpoint)
	require.Equal(t, defaultTimeout, n.client.Timeout)
}

func TestSendPostsJSON(t *testing.T) {
	t.Parallel()

	type captured struct {
		method, path, contentType string
		body                      payload
	}
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		got <- captured{r.Method, r.URL.EscapedPath(), r.Header.Get("Content-Type"), p}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	n, err := New(Config{BaseURL: srv.URL + "/api/messages/", RecipientToken: "a b", Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, n.Send(context.Background(), "The phrase 'x' was found 2 times on https://example.com."))

	c := <-got
	require.Equal(t, http.MethodPost, c.method)
	require.Equal(t, "/api/messages/a%20b", c.path)
	require.Equal(t, "application/json", c.contentType)
	require.Equal(t, "The phrase 'x' was found 2 times on https://example.com.", c.body.Text)
}

func TestSendReportsNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid recipient", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	n, err := New(Config{BaseURL: srv.URL, RecipientToken: "tok"})
	require.NoError(t, err)

	err = n.Send(context.Background(), "hello")
	require.ErrorIs(t, err, ErrDelivery)
	require.Contains(t, err.Error(), "invalid recipient")
}

func TestSendTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	n, err := New(Config{BaseURL: base, RecipientToken: "tok", Timeout: time.Second})
	require.NoError(t, err)
	require.Error(t, n.Send(context.Background(), "hello"))
}
