// Package integration exercises the fully wired proxy surface end to end:
// router, cache store, coalescer and origin client against a mock origin.
package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/grepotools/grepodata-proxy/internal/testutil"
	"github.com/grepotools/grepodata-proxy/pkg/cache"
	"github.com/grepotools/grepodata-proxy/pkg/coalesce"
	"github.com/grepotools/grepodata-proxy/pkg/proxy"
	"github.com/grepotools/grepodata-proxy/pkg/upstream"
)

type env struct {
	origin *testutil.MockOrigin
	clock  *clock.Mock
	server *httptest.Server
}

func setup(t *testing.T) *env {
	t.Helper()

	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	client, err := upstream.New(upstream.Config{
		BaseURL:   origin.URL() + "/{world}/data/{file}",
		Timeout:   2 * time.Second,
		UserAgent: "grepodata-proxy-integration/1.0",
	})
	if err != nil {
		t.Fatalf("upstream.New() failed: %v", err)
	}

	clk := clock.NewMock()
	handler, err := proxy.New(proxy.Config{
		Store:         cache.NewStore(16, clk),
		Group:         coalesce.New(2*time.Second, 4*time.Second),
		Client:        client,
		Endpoints:     proxy.Endpoints(nil),
		AllowedOrigin: "*",
		Clock:         clk,
	})
	if err != nil {
		t.Fatalf("proxy.New() failed: %v", err)
	}

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &env{origin: origin, clock: clk, server: server}
}

func (e *env) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

// TestFullRequestFlow covers the hit/miss/expiry lifecycle over a real
// HTTP round trip.
func TestFullRequestFlow(t *testing.T) {
	e := setup(t)
	e.origin.SetDatafile("de42", "players.txt", "1,SomePlayer,123,5,100,0\n")

	// Miss: fetched from the origin.
	resp, body := e.get(t, "/de42/players.txt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body != "1,SomePlayer,123,5,100,0\n" {
		t.Errorf("body = %q", body)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := resp.Header.Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}

	// Hit: identical response, no new origin call.
	resp, second := e.get(t, "/de42/players.txt")
	if second != body {
		t.Error("cached body differs from origin body")
	}
	if got := resp.Header.Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	if got := e.origin.RequestCount(); got != 1 {
		t.Errorf("origin saw %d requests, want 1", got)
	}

	// Expiry: exactly one refetch.
	e.clock.Add(16 * time.Minute)
	resp, _ = e.get(t, "/de42/players.txt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status after expiry = %d, want 200", resp.StatusCode)
	}
	if got := e.origin.RequestCount(); got != 2 {
		t.Errorf("origin saw %d requests after expiry, want 2", got)
	}
}

func TestConcurrentClientsShareOneFetch(t *testing.T) {
	e := setup(t)
	e.origin.SetResponse("/en134/data/towns.txt", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       "1,Town,500,500,10\n",
		Delay:      100 * time.Millisecond,
	})

	const clients = 8
	var wg sync.WaitGroup
	errs := make(chan error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(e.server.URL + "/en134/towns.txt")
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("client error: %v", err)
	}

	if got := e.origin.PathCount("/en134/data/towns.txt"); got != 1 {
		t.Errorf("origin saw %d fetches, want exactly 1", got)
	}
}

func TestPreflightAndErrorsCarryCORS(t *testing.T) {
	e := setup(t)

	req, _ := http.NewRequest(http.MethodOptions, e.server.URL+"/de42/players.txt", nil)
	req.Header.Set("Origin", "https://game-tools.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("preflight Access-Control-Allow-Origin = %q, want *", got)
	}

	// Unknown datafile: error still readable cross-origin.
	resp, _ = e.get(t, "/de42/nope.txt")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("error Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := e.origin.RequestCount(); got != 0 {
		t.Errorf("origin saw %d requests, want 0", got)
	}
}
