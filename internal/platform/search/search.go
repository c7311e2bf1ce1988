// Package search maintains the Elasticsearch indices that back
// search-as-you-type over benefits and users.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
)

const (
	BenefitsIndex = "benefits"
	UsersIndex    = "users"
)

// Indexer maintains search documents and answers prefix queries. When
// Enabled is false the services fall back to SQL filtering and the other
// methods are no-ops.
type Indexer interface {
	Enabled() bool
	EnsureIndices(ctx context.Context) error
	IndexBenefit(ctx context.Context, b benefit.Benefit) error
	RemoveBenefit(ctx context.Context, id string) error
	IndexUser(ctx context.Context, u user.User) error
	RemoveUser(ctx context.Context, id string) error
	// SearchBenefits and SearchUsers return matching document IDs in
	// relevance order.
	SearchBenefits(ctx context.Context, query string, limit int) ([]string, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]string, error)
}

// benefitsMapping uses search_as_you_type so queries match while the user
// is still typing.
const benefitsMapping = `{
  "mappings": {
    "properties": {
      "name": {"type": "search_as_you_type"},
      "description": {"type": "text"},
      "category_id": {"type": "keyword"}
    }
  }
}`

const usersMapping = `{
  "mappings": {
    "properties": {
      "email": {"type": "search_as_you_type"},
      "firstname": {"type": "search_as_you_type"},
      "lastname": {"type": "search_as_you_type"},
      "middlename": {"type": "search_as_you_type"},
      "fullname": {"type": "search_as_you_type"},
      "legal_entity_id": {"type": "keyword"}
    }
  }
}`

// ElasticIndexer talks to an Elasticsearch cluster.
type ElasticIndexer struct {
	client *elasticsearch.Client
}

// NewElasticIndexer builds a client from configuration and verifies the
// cluster is reachable.
func NewElasticIndexer(ctx context.Context, cfg config.ElasticConfig) (*ElasticIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL()},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return &ElasticIndexer{client: client}, nil
}

// Enabled reports that this indexer serves queries.
func (e *ElasticIndexer) Enabled() bool { return true }

// EnsureIndices creates the benefits and users indices when missing.
func (e *ElasticIndexer) EnsureIndices(ctx context.Context) error {
	for index, mapping := range map[string]string{
		BenefitsIndex: benefitsMapping,
		UsersIndex:    usersMapping,
	} {
		exists, err := e.client.Indices.Exists([]string{index},
			e.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", index, err)
		}
		exists.Body.Close()
		if exists.StatusCode == 200 {
			continue
		}
		res, err := e.client.Indices.Create(index,
			e.client.Indices.Create.WithContext(ctx),
			e.client.Indices.Create.WithBody(strings.NewReader(mapping)))
		if err != nil {
			return fmt.Errorf("create index %s: %w", index, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("create index %s: %s", index, res.Status())
		}
	}
	return nil
}

type benefitDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id,omitempty"`
}

type userDoc struct {
	Email         string `json:"email"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Middlename    string `json:"middlename,omitempty"`
	Fullname      string `json:"fullname"`
	LegalEntityID string `json:"legal_entity_id,omitempty"`
}

// IndexBenefit upserts the benefit document.
func (e *ElasticIndexer) IndexBenefit(ctx context.Context, b benefit.Benefit) error {
	doc := benefitDoc{Name: b.Name, Description: b.Description, CategoryID: b.CategoryID}
	return e.indexDoc(ctx, BenefitsIndex, b.ID, doc)
}

// RemoveBenefit deletes the benefit document. A missing document is not an
// error.
func (e *ElasticIndexer) RemoveBenefit(ctx context.Context, id string) error {
	return e.deleteDoc(ctx, BenefitsIndex, id)
}

// IndexUser upserts the user document.
func (e *ElasticIndexer) IndexUser(ctx context.Context, u user.User) error {
	doc := userDoc{
		Email:         u.Email,
		Firstname:     u.Firstname,
		Lastname:      u.Lastname,
		Middlename:    u.Middlename,
		Fullname:      u.FullName(),
		LegalEntityID: u.LegalEntityID,
	}
	return e.indexDoc(ctx, UsersIndex, u.ID, doc)
}

// RemoveUser deletes the user document.
func (e *ElasticIndexer) RemoveUser(ctx context.Context, id string) error {
	return e.deleteDoc(ctx, UsersIndex, id)
}

// SearchBenefits runs a bool_prefix query over the benefit name.
func (e *ElasticIndexer) SearchBenefits(ctx context.Context, query string, limit int) ([]string, error) {
	return e.search(ctx, BenefitsIndex, query, limit,
		[]string{"name", "name._2gram", "name._3gram"})
}

// SearchUsers runs a bool_prefix query over user names and email.
func (e *ElasticIndexer) SearchUsers(ctx context.Context, query string, limit int) ([]string, error) {
	return e.search(ctx, UsersIndex, query, limit,
		[]string{"fullname", "fullname._2gram", "fullname._3gram", "email", "firstname", "lastname"})
}

func (e *ElasticIndexer) indexDoc(ctx context.Context, index, id string, doc interface{}) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s document: %w", index, err)
	}
	res, err := e.client.Index(index, bytes.NewReader(payload),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(id))
	if err != nil {
		return fmt.Errorf("index %s document %s: %w", index, id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s document %s: %s", index, id, res.Status())
	}
	return nil
}

func (e *ElasticIndexer) deleteDoc(ctx context.Context, index, id string) error {
	res, err := e.client.Delete(index, id, e.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete %s document %s: %w", index, id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete %s document %s: %s", index, id, res.Status())
	}
	return nil
}

func (e *ElasticIndexer) search(ctx context.Context, index, query string, limit int, fields []string) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"type":   "bool_prefix",
				"fields": fields,
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(&buf))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, res.Status())
	}
	return decodeHitIDs(res)
}

func decodeHitIDs(res *esapi.Response) ([]string, error) {
	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// NoopIndexer is used when Elasticsearch is disabled or unreachable.
type NoopIndexer struct{}

func (NoopIndexer) Enabled() bool                                       { return false }
func (NoopIndexer) EnsureIndices(context.Context) error                 { return nil }
func (NoopIndexer) IndexBenefit(context.Context, benefit.Benefit) error { return nil }
func (NoopIndexer) RemoveBenefit(context.Context, string) error         { return nil }
func (NoopIndexer) IndexUser(context.Context, user.User) error          { return nil }
func (NoopIndexer) RemoveUser(context.Context, string) error            { return nil }
func (NoopIndexer) SearchBenefits(context.Context, string, int) ([]string, error) {
	return nil, nil
}
func (NoopIndexer) SearchUsers(context.Context, string, int) ([]string, error) {
	return nil, nil
}
