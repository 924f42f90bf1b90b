package explorer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.RPS = 1000
	cfg.Burst = 1000
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func TestContractSourceVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "contract", r.URL.Query().Get("module"))
		assert.Equal(t, "getsourcecode", r.URL.Query().Get("action"))
		assert.Equal(t, "0xdeadbeef", r.URL.Query().Get("address"))
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"SourceCode":"contract Vault { }","ContractName":"Vault"}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	src, err := c.ContractSource(context.Background(), "0xDEADBEEF")
	require.NoError(t, err)
	assert.True(t, src.Verified)
	assert.Equal(t, "Vault", src.ContractName)
	assert.Contains(t, src.Code, "contract Vault")
}

func TestContractSourceNotOKMapsToUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	src, err := c.ContractSource(context.Background(), "deadbeef")
	require.NoError(t, err, "NOTOK must be the unverified path, not an error")
	assert.False(t, src.Verified)
}

func TestContractSourceEmptyCodeIsUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"SourceCode":"","ContractName":""}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	src, err := c.ContractSource(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, src.Verified)
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"SourceCode":"contract A{}","ContractName":"A"}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	src, err := c.ContractSource(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.True(t, src.Verified)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.ContractSource(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestDailyBudgetExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":""}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DailyBudget = 1
	c := NewClient(cfg)

	_, err := c.ContractSource(context.Background(), "aaaa")
	require.NoError(t, err)
	_, err = c.ContractSource(context.Background(), "bbbb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
}

func TestContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryBackoff = time.Hour // cancellation must cut the backoff short
	c := NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.ContractSource(ctx, "deadbeef")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
