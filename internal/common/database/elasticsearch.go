package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"baws-workers/internal/common/config"
)

// analysisMapping keeps agent output out of the inverted index; only the
// identifying fields are searchable.
const analysisMapping = `{
  "mappings": {
    "properties": {
      "analysis_id":     {"type": "long"},
      "project_id":      {"type": "long"},
      "document_id":     {"type": "long"},
      "conversation_id": {"type": "long"},
      "filename":        {"type": "keyword"},
      "agent_results":   {"type": "object", "enabled": false},
      "completed_at":    {"type": "date"}
    }
  }
}`

// ElasticsearchClient writes completed analyses to a search index.
type ElasticsearchClient struct {
	es *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{es: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	return checkResponse("ping", res, err)
}

// EnsureIndex creates index with the analysis mapping unless it exists.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index string) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch exists %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.es.Indices.Create(index,
		c.es.Indices.Create.WithBody(strings.NewReader(analysisMapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err == nil && res.StatusCode == http.StatusBadRequest {
		// Another worker won the race.
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("elasticsearch create %s: %s", index, body)
	}
	return checkResponse("create "+index, res, err)
}

// IndexDocument stores doc under id, replacing any previous version.
func (c *ElasticsearchClient) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", index, id, err)
	}
	res, err := c.es.Index(index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx),
	)
	return checkResponse("index "+index+"/"+id, res, err)
}

func checkResponse(op string, res *esapi.Response, err error) error {
	if err != nil {
		return fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch %s: %s", op, res.Status())
	}
	return nil
}
