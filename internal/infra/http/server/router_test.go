package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/handlers"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/middleware"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/memstore"
	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

func TestRouter_ServesReportsHealthAndMetrics(t *testing.T) {
	store := memstore.New()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Upsert(context.Background(), entity.LeadsTable, []entity.Row{
		entity.Lead{ExternalID: "L1", LifecycleStage: "customer", CreatedAt: ts, SourceUpdatedAt: ts, LastSyncedAt: ts}.Row(),
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reports := usecase.NewReportUseCase(store, entity.DefaultHighValueThreshold, nil)
	router := NewRouter(Deps{
		Reports:  handlers.NewReportHandler(reports, nil),
		Health:   handlers.NewHealthHandler(store, nil, "fixture", "test"),
		Metrics:  middleware.NewHTTPMetrics(reg),
		Gatherer: reg,
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	for _, path := range []string{"/analytics/conversion", "/analytics/deals-performance", "/health"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sync")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
