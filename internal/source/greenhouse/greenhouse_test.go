package greenhouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/ratelimit"
	"jobfeed-engine/internal/source"
)

const boardHTML = `<html><body>
  <a href="/acme/jobs/4001">Senior Data Engineer</a>
  <a href="/acme/jobs/4001">Senior Data Engineer</a>
  <a href="/acme/jobs/4002">View opening</a>
  <a href="/acme">All jobs</a>
  <a href="https://twitter.com/acme">Twitter</a>
</body></html>`

const jobPageHTML = `<html><body>
  <h1>Senior&nbsp;Data Engineer</h1>
  <div class="location">Berlin, Germany</div>
  <div id="content">
    <p>Build pipelines.</p>
    <ul>
      <li>5+ years Go</li>
      <li>Kubernetes</li>
    </ul>
  </div>
</body></html>`

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := New(config.Source{ID: "gh-acme", Name: "Acme", Slug: "acme"},
		source.NewClient(nil, ratelimit.Policy{MaxAttempts: 1}))
	a.baseURL = srv.URL
	return a
}

func TestFetchScrapesBoardAndJobPages(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme":
			_, _ = w.Write([]byte(boardHTML))
		case "/acme/jobs/4001", "/acme/jobs/4002":
			_, _ = w.Write([]byte(jobPageHTML))
		default:
			http.NotFound(w, r)
		}
	}))

	var got []domain.RawPosting
	err := a.Fetch(context.Background(), func(rp domain.RawPosting) { got = append(got, rp) })
	require.NoError(t, err)

	// two distinct job links; duplicates and non-job anchors skipped
	require.Len(t, got, 2)

	rp := got[0]
	assert.Equal(t, "gh-acme", rp.SourceID)
	assert.Contains(t, rp.SourceURL, "/acme/jobs/4001")
	assert.Equal(t, "Senior Data Engineer", rp.Fields["title"])
	assert.Equal(t, "Acme", rp.Fields["company"])
	assert.Equal(t, "Berlin, Germany", rp.Fields["location"])

	reqs, ok := rp.Fields["requirements"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"5+ years Go", "Kubernetes"}, reqs)

	// the "View opening" anchor is junk text; the detail page h1 wins
	assert.Equal(t, "Senior Data Engineer", got[1].Fields["title"])
	assert.Equal(t, source.HealthOK, a.Health())
}

func TestFetchQuarantinesBrokenJobPages(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme":
			_, _ = w.Write([]byte(boardHTML))
		case "/acme/jobs/4001":
			_, _ = w.Write([]byte(jobPageHTML))
		default:
			http.NotFound(w, r)
		}
	}))

	var got []domain.RawPosting
	err := a.Fetch(context.Background(), func(rp domain.RawPosting) { got = append(got, rp) })

	var pe *source.PartialError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Quarantined)
	assert.Len(t, got, 1)
	assert.Equal(t, source.HealthDegraded, a.Health())
}

func TestFetchMissingBoardIsPermanent(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	err := a.Fetch(context.Background(), func(domain.RawPosting) {
		t.Fatal("nothing should be emitted")
	})

	assert.True(t, source.IsPermanent(err))
	assert.Equal(t, source.HealthDown, a.Health())
}

func TestExtractJobID(t *testing.T) {
	assert.Equal(t, "4001", extractJobID("https://boards.example.com/acme/jobs/4001"))
	assert.Equal(t, "4001", extractJobID("https://boards.example.com/acme/jobs/4001?src=feed"))
	assert.Equal(t, "", extractJobID("https://boards.example.com/acme"))
	assert.Equal(t, "", extractJobID("https://boards.example.com/acme/jobs/apply"))
}
