package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/w-h-a/brain/index"
	getsafe "github.com/w-h-a/brain/util/get_safe"
)

var errNotFound = errors.New("qdrant: not found")

type qdrantIndex struct {
	options index.Options
	client  *http.Client
}

func (s *qdrantIndex) Insert(ctx context.Context, entry index.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	point := qdrantPoint{
		Id:     entry.EmbeddingId,
		Vector: entry.Vector,
		Payload: map[string]any{
			"category":   entry.Category,
			"item_id":    entry.ItemId,
			"backend":    entry.Backend,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}

	req := map[string]any{
		"points": []qdrantPoint{point},
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return index.Unavailable(err)
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return index.Unavailable(errors.New(rsp.Status.Error))
	}

	return nil
}

func (s *qdrantIndex) Query(ctx context.Context, category string, vector []float32, opts ...index.QueryOption) ([]index.Hit, error) {
	options := index.NewQueryOptions(opts...)

	if options.TopK < 1 {
		return nil, nil
	}

	filter := qdrantFilter{
		Must: []qdrantCondition{
			{Key: "category", Match: map[string]any{"value": category}},
		},
	}
	if len(options.Backend) > 0 {
		filter.Must = append(filter.Must, qdrantCondition{Key: "backend", Match: map[string]any{"value": options.Backend}})
	}

	req := qdrantSearchRequest{
		Vector:      vector,
		Limit:       options.TopK,
		WithPayload: true,
		Filter:      filter,
	}

	var rsp qdrantEnvelope[[]qdrantScoredPoint]

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, index.Unavailable(err)
	}

	hits := make([]index.Hit, 0, len(rsp.Result))

	for _, point := range rsp.Result {
		hits = append(hits, index.Hit{
			EmbeddingId: point.Id,
			ItemId:      getsafe.String(point.Payload, "item_id"),
			Score:       point.Score,
		})
	}

	return hits, nil
}

func (s *qdrantIndex) do(ctx context.Context, method string, path string, req any, rsp any) error {
	u := s.options.Location + path

	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if len(s.options.ApiKey) > 0 {
		request.Header.Set("api-key", s.options.ApiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

func (s *qdrantIndex) configure(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	if err := s.createCollection(ctx); err != nil {
		return err
	}

	return s.createPayloadIndexes(ctx)
}

func (s *qdrantIndex) collectionExists(ctx context.Context) (bool, error) {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodGet, path, nil, &rsp); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, err
	}

	return strings.EqualFold(rsp.Status.State, "ok"), nil
}

func (s *qdrantIndex) createCollection(ctx context.Context) error {
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.options.VectorSize,
			"distance": "Cosine",
		},
	}

	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (s *qdrantIndex) createPayloadIndexes(ctx context.Context) error {
	path := fmt.Sprintf("/collections/%s/index?wait=true", url.PathEscape(s.options.Collection))

	for _, field := range []string{"category", "backend"} {
		req := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		if err := s.do(ctx, http.MethodPut, path, req, nil); err != nil {
			return fmt.Errorf("failed to index payload field %s: %w", field, err)
		}
	}

	return nil
}

func NewIndex(opts ...index.Option) index.Index {
	options := index.NewOptions(opts...)

	if len(options.Location) == 0 ||
		len(options.Collection) == 0 ||
		options.VectorSize == 0 {
		panic("missing location, collection, or vector size for qdrant index")
	}

	options.Location = strings.TrimRight(options.Location, "/")

	s := &qdrantIndex{
		options: options,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(options.Context, 15*time.Second)
	defer cancel()

	if err := s.configure(ctx); err != nil {
		panic(err)
	}

	return s
}
