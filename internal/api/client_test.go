package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/daycare-notify/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	return NewClient(ts.URL+"/api/", "tok", WithRetry(3, time.Millisecond))
}

func TestComplaintsByRecipient(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("recipient")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"_id":"c1","subject":"Nap time","status":"Pending","date":"2024-01-02"}]`))
	})

	got, err := c.ComplaintsByRecipient(context.Background(), model.RecipientTeacher)
	require.NoError(t, err)

	assert.Equal(t, "/api/complaints", gotPath)
	assert.Equal(t, "teacher", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "Nap time", got[0].Subject)
	assert.NotEmpty(t, got[0].Raw)
}

func TestComplaintsByRecipientNumericIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":17,"subject":"Nap time","status":"Pending"},{"_id":18,"status":"pending"}]`))
	})

	got, err := c.ComplaintsByRecipient(context.Background(), model.RecipientTeacher)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "17", got[0].ID)
	assert.Equal(t, "18", got[1].ID)
}

func TestMeetingsByRecipientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"m1","topic":"Progress","status":"pending"}]`))
	})

	got, err := c.MeetingsByRecipient(context.Background(), model.RecipientSupervisor)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("nope"))
	})

	_, err := c.ComplaintsByRecipient(context.Background(), model.RecipientTeacher)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientMalformedBody(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := c.MeetingsByRecipient(context.Background(), model.RecipientTeacher)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ComplaintsByRecipient(context.Background(), model.RecipientTeacher)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}
