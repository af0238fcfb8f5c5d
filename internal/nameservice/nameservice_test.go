package nameservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	xerrors "Arya-Agent/internal/errors"
)

func TestResolveEmptyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	assert.Equal(t, "", client.Resolve(context.Background(), "   "))
	_, outcome := client.ResolveDetailed(context.Background(), "")
	assert.Equal(t, OutcomeEmptyInput, outcome)
	assert.Zero(t, hits.Load())
}

func TestResolveDetailedOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("domain") {
		case "satoshi.stark":
			_, _ = w.Write([]byte(`{"addr":"0x0611fb3e8ea2da8ee1c0d8e4b2e5bb4e0f33a8ad8c8f8c0e5a6d8a61d6d8b7f1"}`))
		case "ghost.stark":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"no address found"}`))
		case "blank.stark":
			_, _ = w.Write([]byte(`{"addr":""}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	cases := map[string]struct {
		addr    string
		outcome Outcome
	}{
		"satoshi.stark": {"0x0611fb3e8ea2da8ee1c0d8e4b2e5bb4e0f33a8ad8c8f8c0e5a6d8a61d6d8b7f1", OutcomeResolved},
		"ghost.stark":   {"", OutcomeNotFound},
		"blank.stark":   {"", OutcomeNotFound},
		"broken.stark":  {"", OutcomeFailed},
	}
	for name, want := range cases {
		addr, outcome := client.ResolveDetailed(context.Background(), name)
		assert.Equal(t, want.addr, addr, name)
		assert.Equal(t, want.outcome, outcome, name)
		assert.Equal(t, want.addr, client.Resolve(context.Background(), name), name)
	}

	for _, name := range []string{"ghost.stark", "blank.stark"} {
		_, outcome, err := client.lookup(context.Background(), name)
		assert.Equal(t, OutcomeNotFound, outcome, name)
		assert.Equal(t, xerrors.CodeResolutionMiss, xerrors.CodeOf(err), name)
		if coded, ok := xerrors.From(err); assert.True(t, ok, name) {
			assert.Equal(t, name, coded.Metadata()["domain"])
		}
	}
	_, _, err := client.lookup(context.Background(), "satoshi.stark")
	assert.NoError(t, err)
}

func TestResolveUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	addr, outcome := NewClient(Config{BaseURL: url, Timeout: 200 * time.Millisecond}).ResolveDetailed(context.Background(), "satoshi.stark")
	assert.Equal(t, "", addr)
	assert.Equal(t, OutcomeFailed, outcome)
}
