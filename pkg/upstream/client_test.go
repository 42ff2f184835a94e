package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/grepotools/grepodata-proxy/internal/testutil"
)

func testClient(t *testing.T, origin *testutil.MockOrigin, timeout time.Duration) *Client {
	t.Helper()

	client, err := New(Config{
		BaseURL:   origin.URL() + "/{world}/data/{file}",
		Timeout:   timeout,
		UserAgent: "grepodata-proxy-test/1.0",
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "missing base URL",
			config: Config{
				Timeout: time.Second,
			},
			expectError: true,
		},
		{
			name: "base URL without placeholders",
			config: Config{
				BaseURL: "https://example.com/data",
				Timeout: time.Second,
			},
			expectError: true,
		},
		{
			name: "non-positive timeout",
			config: Config{
				BaseURL: DefaultBaseURL,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.expectError {
				t.Errorf("New() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestClient_URL(t *testing.T) {
	client, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	got := client.URL("de42", "players.txt")
	want := "https://de42.grepolis.com/data/players.txt"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestClient_Fetch_Success(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	origin.SetDatafile("de42", "players.txt", "1,SomePlayer,123,5,100,0\n")

	client := testClient(t, origin, 5*time.Second)

	result, err := client.Fetch(context.Background(), "de42", "players.txt")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if result.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", result.Status)
	}
	if string(result.Body) != "1,SomePlayer,123,5,100,0\n" {
		t.Errorf("Body = %q", result.Body)
	}
	if result.ContentType == "" {
		t.Error("ContentType is empty")
	}
}

func TestClient_Fetch_UpstreamStatus(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	origin.SetResponse("/nl9/data/players.txt", testutil.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "boom",
	})

	client := testClient(t, origin, 5*time.Second)

	_, err := client.Fetch(context.Background(), "nl9", "players.txt")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch() error = %v, want *Failure", err)
	}
	if failure.Kind != KindUpstreamStatus {
		t.Errorf("Kind = %v, want %v", failure.Kind, KindUpstreamStatus)
	}
	if failure.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", failure.Status)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	origin.SetResponse("/de42/data/towns.txt", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       "1,Town,1,1,1\n",
		Delay:      500 * time.Millisecond,
	})

	client := testClient(t, origin, 50*time.Millisecond)

	_, err := client.Fetch(context.Background(), "de42", "towns.txt")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch() error = %v, want *Failure", err)
	}
	if failure.Kind != KindTimeout {
		t.Errorf("Kind = %v, want %v", failure.Kind, KindTimeout)
	}
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	origin := testutil.NewMockOrigin()
	baseURL := origin.URL()
	origin.Close() // nothing listens anymore

	client, err := New(Config{
		BaseURL:   baseURL + "/{world}/data/{file}",
		Timeout:   time.Second,
		UserAgent: "grepodata-proxy-test/1.0",
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = client.Fetch(context.Background(), "de42", "players.txt")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch() error = %v, want *Failure", err)
	}
	if failure.Kind != KindUnreachable {
		t.Errorf("Kind = %v, want %v", failure.Kind, KindUnreachable)
	}
}

func TestClient_Fetch_BadResponse(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "invalid utf8", body: "\xff\xfe\xfd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin.SetResponse("/de42/data/islands.txt", testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       tt.body,
			})

			client := testClient(t, origin, time.Second)

			_, err := client.Fetch(context.Background(), "de42", "islands.txt")

			var failure *Failure
			if !errors.As(err, &failure) {
				t.Fatalf("Fetch() error = %v, want *Failure", err)
			}
			if failure.Kind != KindBadResponse {
				t.Errorf("Kind = %v, want %v", failure.Kind, KindBadResponse)
			}
		})
	}
}

// TestClient_Fetch_SingleAttempt verifies the client never retries on its
// own: one Fetch call hits the origin exactly once, even on failure.
func TestClient_Fetch_SingleAttempt(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	origin.SetResponse("/de42/data/players.txt", testutil.MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "maintenance",
	})

	client := testClient(t, origin, time.Second)

	_, _ = client.Fetch(context.Background(), "de42", "players.txt")

	if got := origin.RequestCount(); got != 1 {
		t.Errorf("origin saw %d requests, want exactly 1", got)
	}
}

// TestClient_Fetch_NoRedirectFollowing verifies a redirecting origin is
// surfaced as a status failure instead of being chased.
func TestClient_Fetch_NoRedirectFollowing(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	origin.SetHandler("/zz1/data/players.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://www.grepolis.com/", http.StatusMovedPermanently)
	})

	client := testClient(t, origin, time.Second)

	_, err := client.Fetch(context.Background(), "zz1", "players.txt")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch() error = %v, want *Failure", err)
	}
	if failure.Kind != KindUpstreamStatus {
		t.Errorf("Kind = %v, want %v", failure.Kind, KindUpstreamStatus)
	}
	if failure.Status != http.StatusMovedPermanently {
		t.Errorf("Status = %d, want 301", failure.Status)
	}
	if got := origin.RequestCount(); got != 1 {
		t.Errorf("origin saw %d requests, want 1 (redirect must not be followed)", got)
	}
}
