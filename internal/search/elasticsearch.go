package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ClusterIndex is the unprefixed index clustering runs are written to
const ClusterIndex = "clusters"

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// ClusterDocument builds the indexed form of one cluster
func ClusterDocument(runID uuid.UUID, runAt time.Time, c models.LocationCluster) map[string]interface{} {
	return map[string]interface{}{
		"id":            c.ID.String(),
		"run_id":        runID.String(),
		"run_at":        runAt,
		"location":      map[string]float64{"lat": c.Centroid.Lat, "lon": c.Centroid.Lon},
		"radius_km":     c.RadiusKm,
		"risk_level":    string(c.RiskLevel),
		"point_count":   c.PointCount,
		"last_activity": c.LastActivity,
	}
}

// IndexClusters indexes every cluster of a run; it stops at the first failure
func (c *ElasticClient) IndexClusters(ctx context.Context, runID uuid.UUID, clusters []models.LocationCluster) error {
	indexName := config.FormatIndex(c.config, ClusterIndex)
	runAt := time.Now().UTC()

	for _, cluster := range clusters {
		docJSON, err := json.Marshal(ClusterDocument(runID, runAt, cluster))
		if err != nil {
			return errors.Wrap(err, "failed to marshal cluster document")
		}

		req := esapi.IndexRequest{
			Index:      indexName,
			DocumentID: cluster.ID.String(),
			Body:       bytes.NewReader(docJSON),
		}

		res, err := req.Do(ctx, c.client)
		if err != nil {
			return errors.Wrap(err, "failed to execute Elasticsearch index request")
		}

		if res.IsError() {
			var e map[string]interface{}
			decodeErr := json.NewDecoder(res.Body).Decode(&e)
			res.Body.Close()
			if decodeErr != nil {
				return errors.Wrap(decodeErr, "failed to parse Elasticsearch error response")
			}
			return errors.Errorf("Elasticsearch index error: %v", e)
		}
		res.Body.Close()
	}

	log.Info().Str("run_id", runID.String()).Int("cluster_count", len(clusters)).Str("index", indexName).Msg("Cluster run indexed")
	return nil
}

// IndexClustersAsync indexes a run in the background and only logs failures
func (c *ElasticClient) IndexClustersAsync(runID uuid.UUID, clusters []models.LocationCluster) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.IndexClusters(ctx, runID, clusters); err != nil {
			log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to index cluster run")
		}
	}()
}
