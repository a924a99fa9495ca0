package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cluster() models.LocationCluster {
	return models.LocationCluster{
		ID:           uuid.New(),
		Centroid:     geo.Point{Lat: -8.71, Lon: 115.17},
		RadiusKm:     0.8,
		RiskLevel:    models.RiskMedium,
		PointCount:   12,
		LastActivity: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestClusterDocument(t *testing.T) {
	runID := uuid.New()
	c := cluster()
	doc := ClusterDocument(runID, time.Now(), c)

	assert.Equal(t, c.ID.String(), doc["id"])
	assert.Equal(t, runID.String(), doc["run_id"])
	assert.Equal(t, "medium", doc["risk_level"])
	assert.Equal(t, 12, doc["point_count"])
	assert.Equal(t, map[string]float64{"lat": -8.71, "lon": 115.17}, doc["location"])
}

// fakeElastic answers the product check and records index requests
type fakeElastic struct {
	mu    sync.Mutex
	paths []string
	docs  []map[string]interface{}
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/" {
		_, _ = io.WriteString(w, `{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`)
		return
	}

	var doc map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&doc)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.docs = append(f.docs, doc)
	f.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, `{"result":"created"}`)
}

func TestIndexClusters(t *testing.T) {
	fake := &fakeElastic{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := NewElasticClient(config.ElasticConfig{URL: srv.URL, Prefix: "coastwatch"})
	require.NoError(t, err)

	clusters := []models.LocationCluster{cluster(), cluster()}
	require.NoError(t, client.IndexClusters(context.Background(), uuid.New(), clusters))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.paths, 2)
	for i, p := range fake.paths {
		assert.True(t, strings.HasPrefix(p, "/coastwatch-clusters/_doc/"), p)
		assert.Equal(t, clusters[i].ID.String(), fake.docs[i]["id"])
	}
}

func TestIndexClustersReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"mapper_parsing_exception"}}`)
	}))
	defer srv.Close()

	client, err := NewElasticClient(config.ElasticConfig{URL: srv.URL, Prefix: "coastwatch"})
	require.NoError(t, err)

	err = client.IndexClusters(context.Background(), uuid.New(), []models.LocationCluster{cluster()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}
