package seed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"grants":[{"id":1,"grantType":"DISC1"}],"papers":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	data, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Grants, 1)
	require.NotNil(t, data.ActiveGrants)
}

func TestClient_FetchRejectsBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
}

func TestClient_FetchRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary":{}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.ErrorIs(t, err, cirm.ErrInvalidStructure)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", time.Second)
	require.Error(t, err)

	_, err = NewClient("not a url", time.Second)
	require.Error(t, err)
}
