package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/qdrant/go-client/qdrant"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// pointQuerier is the part of *qdrant.Client the knowledge base uses.
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// KnowledgeBaseConfig holds Qdrant connection configuration.
type KnowledgeBaseConfig struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string
	// Collection is the name of the collection to search.
	Collection string
	// APIKey is optional API key for authentication.
	APIKey string
	// MinScore drops points scoring below it. Zero keeps everything.
	MinScore float32
	// Filter restricts results to points whose payload matches every entry.
	Filter map[string]any
}

// KnowledgeBase searches the internal advising knowledge base in Qdrant.
type KnowledgeBase struct {
	client     pointQuerier
	embedder   Embedder
	collection string
	minScore   float32
	filter     *qdrant.Filter
}

// NewKnowledgeBase connects to Qdrant. Queries are embedded with embedder.
func NewKnowledgeBase(cfg KnowledgeBaseConfig, embedder Embedder) (*KnowledgeBase, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	qcfg, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	qcfg.APIKey = cfg.APIKey

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return newKnowledgeBase(client, embedder, cfg), nil
}

func newKnowledgeBase(client pointQuerier, embedder Embedder, cfg KnowledgeBaseConfig) *KnowledgeBase {
	return &KnowledgeBase{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		minScore:   cfg.MinScore,
		filter:     buildFilter(cfg.Filter),
	}
}

// parseQdrantURL extracts host, port and scheme. Bare hosts default to TLS
// on the gRPC port 6334.
func parseQdrantURL(raw string) (*qdrant.Config, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}
	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https",
	}, nil
}

// Search implements Backend.
func (k *KnowledgeBase) Search(ctx context.Context, query string, limit int) ([]advisor.Snippet, error) {
	vector, err := k.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limitUint64 := uint64(max(limit, 1))
	points, err := k.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: k.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		Filter:         k.filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	out := make([]advisor.Snippet, 0, len(points))
	for _, point := range points {
		if k.minScore > 0 && point.Score < k.minScore {
			continue
		}
		s := advisor.Snippet{Score: point.Score, Source: "kb"}
		if point.Id != nil {
			if id := point.Id.GetUuid(); id != "" {
				s.Source = "kb:" + id
			} else if num := point.Id.GetNum(); num != 0 {
				s.Source = "kb:" + strconv.FormatUint(num, 10)
			}
		}
		for key, v := range point.Payload {
			switch key {
			case "content", "text":
				if str := v.GetStringValue(); str != "" {
					s.Content = str
				}
			case "title":
				s.Title = v.GetStringValue()
			case "url", "source":
				if str := v.GetStringValue(); str != "" {
					s.Source = str
				}
			}
		}
		if s.Content == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Close releases the Qdrant connection.
func (k *KnowledgeBase) Close() error {
	return k.client.Close()
}

// buildFilter converts payload matches into a Qdrant must-filter.
func buildFilter(match map[string]any) *qdrant.Filter {
	if len(match) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(match))
	for key, value := range match {
		conditions = append(conditions, buildMatchCondition(key, value))
	}
	return &qdrant.Filter{Must: conditions}
}

// buildMatchCondition creates a match condition for a key-value pair.
func buildMatchCondition(key string, value any) *qdrant.Condition {
	var m *qdrant.Match
	switch v := value.(type) {
	case string:
		m = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
	case []string:
		m = &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: v}}}
	case int:
		m = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
	case bool:
		m = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
	default:
		m = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}}
	}
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Match: m},
		},
	}
}
