// Package testutil carries the scaffolding shared by tests across the
// module: telemetry setup, random fixture values and a file-backed fake of
// the site.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"goskoob/lib/telemetry"

	"github.com/mazen160/go-random"
)

// Setup initializes telemetry and logging for a test.
func Setup(t testing.TB, name string) func() {
	return telemetry.SetupForTesting(t, "test:"+name)
}

// Token returns a random string to stand in for session ids and the like.
func Token(t testing.TB, length int) string {
	s, err := random.String(length)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// FixtureServer serves canned files keyed by exact request path. Anything
// not routed 404s, which is what a scraper should see for a page that does
// not exist.
func FixtureServer(t testing.TB, routes map[string]string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, err := os.ReadFile(file)
		if err != nil {
			t.Errorf("fixture %s: %s", file, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}
