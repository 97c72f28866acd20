package collyfetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/playcatalog/harvester/internal/fetcher/colly"
)

func TestFetch(t *testing.T) {
	t.Run("ReturnsResponseBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("shard payload"))
		}))
		defer server.Close()

		fetcher := collyfetcher.New(collyfetcher.Config{RespectRobots: false})
		body, err := fetcher.Fetch(context.Background(), server.URL+"/part-0.xml.gz")
		require.NoError(t, err)
		assert.Equal(t, "shard payload", string(body))
	})

	t.Run("SendsConfiguredUserAgent", func(t *testing.T) {
		var gotAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAgent = r.UserAgent()
		}))
		defer server.Close()

		fetcher := collyfetcher.New(collyfetcher.Config{
			UserAgent:     "playcatalog-harvester/0.1",
			RespectRobots: false,
		})
		_, err := fetcher.Fetch(context.Background(), server.URL+"/x")
		require.NoError(t, err)
		assert.Equal(t, "playcatalog-harvester/0.1", gotAgent)
	})

	t.Run("ServerErrorFails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		fetcher := collyfetcher.New(collyfetcher.Config{RespectRobots: false})
		_, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
		assert.Error(t, err)
	})

	t.Run("CanceledContextAborts", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-release
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()

		fetcher := collyfetcher.New(collyfetcher.Config{
			RespectRobots: false,
			Timeout:       5 * time.Second,
		})
		_, err := fetcher.Fetch(ctx, server.URL+"/slow")
		assert.ErrorContains(t, err, "fetch canceled")
	})
}
