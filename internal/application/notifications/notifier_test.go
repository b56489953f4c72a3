package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrevoClient_SendsRenderedEvent(t *testing.T) {
	var got BrevoSendRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := &BrevoClient{APIKey: "k", Endpoint: srv.URL}
	err := c.Notify(context.Background(), Event{
		Kind:   KindExitRejected,
		UserID: uuid.New(),
		Email:  "ada@example.com",
		Name:   "Ada <script>",
		Fields: map[string]string{"units": "20", "reason": "docs missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "k", apiKey)
	assert.Equal(t, "ada@example.com", got.To[0].Email)
	assert.Equal(t, "Your exit request was not approved", got.Subject)
	assert.Contains(t, got.HTMLContent, "docs missing")
	assert.Contains(t, got.HTMLContent, "Ada &lt;script&gt;")
}

func TestBrevoClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	c := &BrevoClient{APIKey: "k", Endpoint: srv.URL}
	ctx := context.Background()

	err := c.Notify(ctx, Event{Kind: KindExitApproved, Email: "a@example.com"})
	assert.Error(t, err)

	err = c.Notify(ctx, Event{Kind: "unknown", Email: "a@example.com"})
	assert.Error(t, err)

	assert.NoError(t, c.Notify(ctx, Event{Kind: KindExitApproved}))
}

func TestNew_FallsBackToLogNotifier(t *testing.T) {
	n := New("", "")
	_, ok := n.(LogNotifier)
	assert.True(t, ok)
	assert.NoError(t, n.Notify(context.Background(), Event{Kind: KindExitRequested, Fields: map[string]string{"units": "1"}}))

	_, ok = New("key", "from@example.com").(*BrevoClient)
	assert.True(t, ok)
}
