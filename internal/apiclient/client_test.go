package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, logging.Default(), opts...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func authenticatedContext(t *testing.T) (context.Context, *session.Session, *[]session.Ended) {
	t.Helper()
	m := session.NewManager(session.NewMemoryStore(), logging.Default())
	var ended []session.Ended
	m.OnEnded(func(_ context.Context, ev session.Ended) { ended = append(ended, ev) })
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, s.SaveTokens(context.Background(), "access-abc", "refresh-abc"))
	return session.WithSession(context.Background(), s), s, &ended
}

func TestCallDefaultsToGETWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})

	resp, err := client.Call(context.Background(), "/ping/", &CallOptions{Body: map[string]string{"ignored": "yes"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.IsJSON())
	assert.JSONEq(t, `{"ok":true}`, string(resp.JSON))
}

func TestCallSerializesBodyAndMergesHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "value", got["key"])
		writeJSON(w, http.StatusCreated, `{}`)
	})

	_, err := client.Call(context.Background(), "/things/", &CallOptions{
		Method:  http.MethodPost,
		Body:    map[string]string{"key": "value"},
		Headers: map[string]string{"X-Extra": "yes"},
	})
	require.NoError(t, err)
}

func TestCallKeepsNonJSONAsText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pong"))
	})

	resp, err := client.Call(context.Background(), "/ping/", nil)
	require.NoError(t, err)
	assert.False(t, resp.IsJSON())
	assert.Equal(t, "pong", resp.Text)
	assert.Error(t, resp.Decode(&struct{}{}))
}

func TestCallAttachesBearerToken(t *testing.T) {
	ctx, _, _ := authenticatedContext(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-abc", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `[]`)
	})

	_, err := client.Call(ctx, "/doctors/admin/", nil)
	require.NoError(t, err)
}

func TestCall401ExpiresSession(t *testing.T) {
	ctx, sess, ended := authenticatedContext(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`)
	})

	_, err := client.Call(ctx, "/appointments/admin/stats/", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.True(t, IsSessionExpired(err))

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "Given token not valid for any token type", apiErr.Message)

	assert.False(t, sess.IsAuthenticated())
	assert.Empty(t, sess.RefreshToken())
	require.Len(t, *ended, 1)
	assert.Equal(t, session.ReasonExpired, (*ended)[0].Reason)
}

func TestCall401WithoutSessionStillFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`)
	})

	_, err := client.Login(context.Background(), Credentials{Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, "No active account found with the given credentials", Message(err, "Invalid credentials"))
}

func TestCallErrorWithoutDetailSerializesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{ "error": "This time slot is already booked. Please choose another time." }`)
	})

	_, err := client.Call(context.Background(), "/appointments/", &CallOptions{Method: http.MethodPost, Body: struct{}{}})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, `{"error":"This time slot is already booked. Please choose another time."}`, apiErr.Message)
	data, ok := apiErr.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "This time slot is already booked. Please choose another time.", data["error"])
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestCallTextErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<h1>Server Error (500)</h1>"))
	})

	_, err := client.Call(context.Background(), "/doctors/", nil)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "<h1>Server Error (500)</h1>", apiErr.Message)
	assert.Equal(t, "<h1>Server Error (500)</h1>", apiErr.Data)
}

func TestCallNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := ts.URL
	ts.Close()

	client := NewClient(baseURL, logging.Default())
	_, err := client.Call(context.Background(), "/doctors/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, NetworkErrorMessage, apiErr.Message)
	assert.Nil(t, apiErr.Data)
}

func TestCallHonorsContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Call(ctx, "/doctors/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestCallRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewFrontendMetrics(reg)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail":"Not found."}`)
	}, WithMetrics(m))

	_, err := client.GetDoctor(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "Not found.", Message(err, "fallback"))

	count, err := testutil.GatherAndCount(reg, "docbook_upstream_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "fallback", Message(errors.New("plain"), "fallback"))
	assert.Equal(t, "fallback", Message(&APIError{Status: 500, Message: "  "}, "fallback"))
	assert.Equal(t, "boom", Message(&APIError{Status: 500, Message: "boom"}, "fallback"))
}
