package ticker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"RELIANCE.NS", "RELIANCE.NS"},
		{"RELIANCE.BO", "RELIANCE.NS"},
		{"RELIANCE", "RELIANCE.NS"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.symbol, ".NS", ".BO"), tt.symbol)
	}
	assert.Equal(t, "AAPL", Normalize("AAPL", "", ""))
}

func TestResolve(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		switch gotQuery {
		case "Kothari Products":
			w.Write([]byte(`{"quotes":[{"symbol":""},{"symbol":"KOTHARIPRO.BO","shortname":"Kothari"},{"symbol":"X.NS"}]}`))
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(`{"quotes":[]}`))
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, ".NS", ".BO", 0)

	sym, err := c.Resolve(context.Background(), "Kothari Products")
	require.NoError(t, err)
	assert.Equal(t, "KOTHARIPRO.NS", sym)
	assert.Equal(t, "Kothari Products", gotQuery)
	assert.Equal(t, "Mozilla/5.0", gotUA)

	_, err = c.Resolve(context.Background(), "Nobody Ltd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(context.Background(), "down")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	c := NewHTTPClient(srv.URL, ".NS", ".BO", 0)
	_, err := c.Resolve(context.Background(), "Acme")
	assert.ErrorIs(t, err, ErrUnavailable)

	srv.Close()
	_, err = c.Resolve(context.Background(), "Acme")
	assert.ErrorIs(t, err, ErrUnavailable)
}
