package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/notes/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	before := testutil.ToFloat64(httpErrorsTotal.WithLabelValues(http.MethodGet, "/notes/{id}/download", "500"))
	req := httptest.NewRequest(http.MethodGet, "/notes/abc/download", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(httpErrorsTotal.WithLabelValues(http.MethodGet, "/notes/{id}/download", "500"))
	if after != before+1 {
		t.Fatalf("expected error counter to increase, got %v -> %v", before, after)
	}
}

func TestRouteFromContextDefault(t *testing.T) {
	if got := routeFromContext(context.Background()); got != "unknown" {
		t.Fatalf("expected unknown route, got %q", got)
	}
}

func TestDomainCounters(t *testing.T) {
	subs := testutil.ToFloat64(liveSubscriptions)
	SubscriptionOpened()
	SubscriptionOpened()
	SubscriptionClosed()
	if got := testutil.ToFloat64(liveSubscriptions); got != subs+1 {
		t.Fatalf("expected gauge %v, got %v", subs+1, got)
	}

	failed := testutil.ToFloat64(liveSnapshots.WithLabelValues("error"))
	SnapshotDelivered(errors.New("boom"))
	if got := testutil.ToFloat64(liveSnapshots.WithLabelValues("error")); got != failed+1 {
		t.Fatalf("expected failed snapshot count to increase")
	}

	downloads := testutil.ToFloat64(noteDownloads)
	NoteDownloaded()
	if got := testutil.ToFloat64(noteDownloads); got != downloads+1 {
		t.Fatalf("expected download counter to increase")
	}
}
