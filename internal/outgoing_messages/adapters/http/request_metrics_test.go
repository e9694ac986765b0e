package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMailboxMetrics_LabelsByRoleAndCategory(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MailboxMetrics)
	r.Get("/peek/{category}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	peek := mailboxRequestsCounter.WithLabelValues("GET /peek/{category}", "DDQ", "aggregations", "204")
	invalid := mailboxRequestsCounter.WithLabelValues("GET /peek/{category}", labelInvalid, labelInvalid, "204")
	beforePeek, beforeInvalid := testutil.ToFloat64(peek), testutil.ToFloat64(invalid)

	req := httptest.NewRequest(http.MethodGet, "/peek/aggregations", nil)
	req.Header.Set(HeaderActorRole, "EnergySupplier")
	r.ServeHTTP(httptest.NewRecorder(), req)

	// Free text never becomes a label value.
	req = httptest.NewRequest(http.MethodGet, "/peek/whatever", nil)
	req.Header.Set(HeaderActorRole, "somebody")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, beforePeek+1, testutil.ToFloat64(peek))
	assert.Equal(t, beforeInvalid+1, testutil.ToFloat64(invalid))
}
