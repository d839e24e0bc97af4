package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docqa/internal/vector"
)

// Store keeps document chunks in the Weaviate DocumentChunk class with
// caller-supplied vectors.
type Store struct {
	client    *weaviate.Client
	dimension int
}

// NewStore wraps client. dimension is the only vector length AddDocuments
// accepts; zero disables the check.
func NewStore(client *weaviate.Client, dimension int) *Store {
	return &Store{client: client, dimension: dimension}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, schemaClient{client: s.client})
}

func (s *Store) Ready(ctx context.Context) error {
	ok, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// AddDocuments inserts records in one batch. Vectors are validated before
// anything is written; a batch that fails midway may leave earlier objects
// in place.
func (s *Store) AddDocuments(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	for i, r := range records {
		if len(r.Vector) == 0 || (s.dimension > 0 && len(r.Vector) != s.dimension) {
			return fmt.Errorf("%w: record %d has %d dimensions, want %d", vector.ErrDimensionMismatch, i, len(r.Vector), s.dimension)
		}
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		meta := "{}"
		if len(r.Metadata) > 0 {
			b, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			meta = string(b)
		}
		objects = append(objects, &models.Object{
			Class: vector.ClassName,
			ID:    strfmt.UUID(id),
			Properties: map[string]interface{}{
				"content":    r.Content,
				"docId":      r.DocumentID,
				"source":     r.Source,
				"chunkIndex": r.ChunkIndex,
				"startIndex": r.StartIndex,
				"metadata":   meta,
			},
			Vector: models.C11yVector(r.Vector),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	for _, o := range resp {
		if o.Result != nil && o.Result.Errors != nil && len(o.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert object %s: %s", o.ID, o.Result.Errors.Error[0].Message)
		}
	}
	slog.DebugContext(ctx, "chunks stored", "count", len(records))
	return nil
}

// Search returns at most k chunks ordered by descending similarity.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "docId"},
		{Name: "source"},
		{Name: "chunkIndex"},
		{Name: "metadata"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var matches []vector.Match
	get, _ := res.Data["Get"].(map[string]interface{})
	rows, _ := get[vector.ClassName].([]interface{})
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		m := vector.Match{}
		m.Content, _ = props["content"].(string)
		m.DocumentID, _ = props["docId"].(string)
		m.Source, _ = props["source"].(string)
		if idx, ok := props["chunkIndex"].(float64); ok {
			m.ChunkIndex = int(idx)
		}
		if raw, ok := props["metadata"].(string); ok && raw != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(raw), &meta); err == nil && len(meta) > 0 {
				m.Metadata = meta
			}
		}
		if add, ok := props["_additional"].(map[string]interface{}); ok {
			m.ID, _ = add["id"].(string)
			if d, ok := add["distance"].(float64); ok {
				m.Score = float32(1 - d)
			}
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	rows, _ := agg[vector.ClassName].([]interface{})
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}
