package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/w-h-a/brain/index"
)

const (
	fieldEmbeddingId = "embedding_id"
	fieldCategory    = "category"
	fieldItemId      = "item_id"
	fieldBackend     = "backend"
	fieldEmbedding   = "embedding"
)

// milvusIndex stores unit vectors and searches by inner product, which
// equals cosine similarity for normalized vectors.
type milvusIndex struct {
	options index.Options
	client  client.Client
}

func (m *milvusIndex) Insert(ctx context.Context, entry index.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	if len(entry.Vector) != m.options.VectorSize {
		return fmt.Errorf("milvus index expects %d dimensions, got %d", m.options.VectorSize, len(entry.Vector))
	}

	_, err := m.client.Insert(
		ctx,
		m.options.Collection,
		"",
		entity.NewColumnVarChar(fieldEmbeddingId, []string{entry.EmbeddingId}),
		entity.NewColumnVarChar(fieldCategory, []string{entry.Category}),
		entity.NewColumnVarChar(fieldItemId, []string{entry.ItemId}),
		entity.NewColumnVarChar(fieldBackend, []string{entry.Backend}),
		entity.NewColumnFloatVector(fieldEmbedding, m.options.VectorSize, [][]float32{index.Normalize(entry.Vector)}),
	)
	if err != nil {
		return index.Unavailable(fmt.Errorf("failed to insert vector: %w", err))
	}

	return nil
}

func (m *milvusIndex) Query(ctx context.Context, category string, vector []float32, opts ...index.QueryOption) ([]index.Hit, error) {
	options := index.NewQueryOptions(opts...)

	if options.TopK < 1 {
		return nil, nil
	}

	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, index.Unavailable(err)
	}

	results, err := m.client.Search(
		ctx,
		m.options.Collection,
		[]string{},
		filterExpr(category, options.Backend),
		[]string{fieldItemId},
		[]entity.Vector{entity.FloatVector(index.Normalize(vector))},
		fieldEmbedding,
		entity.IP,
		options.TopK,
		sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		return nil, index.Unavailable(fmt.Errorf("failed to search: %w", err))
	}

	hits := make([]index.Hit, 0, options.TopK)

	for _, sr := range results {
		itemCol := sr.Fields.GetColumn(fieldItemId)
		if itemCol == nil {
			continue
		}
		for i := 0; i < sr.ResultCount; i++ {
			id, err := sr.IDs.Get(i)
			if err != nil {
				return nil, index.Unavailable(err)
			}
			itemId, err := itemCol.Get(i)
			if err != nil {
				return nil, index.Unavailable(err)
			}
			hits = append(hits, index.Hit{
				EmbeddingId: fmt.Sprint(id),
				ItemId:      fmt.Sprint(itemId),
				Score:       float64(sr.Scores[i]),
			})
		}
	}

	return hits, nil
}

func filterExpr(category, backend string) string {
	expr := fmt.Sprintf("%s == %s", fieldCategory, strconv.Quote(category))
	if len(backend) > 0 {
		expr += fmt.Sprintf(" && %s == %s", fieldBackend, strconv.Quote(backend))
	}
	return expr
}

func (m *milvusIndex) configure(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.options.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !has {
		schema := &entity.Schema{
			CollectionName: m.options.Collection,
			Description:    "note embeddings partitioned by category",
			Fields: []*entity.Field{
				{
					Name:       fieldEmbeddingId,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       fieldCategory,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "32"},
				},
				{
					Name:       fieldItemId,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       fieldBackend,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       fieldEmbedding,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": strconv.Itoa(m.options.VectorSize)},
				},
			},
		}

		if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexFlat(entity.IP)
		if err != nil {
			return err
		}

		if err := m.client.CreateIndex(ctx, m.options.Collection, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := m.client.LoadCollection(ctx, m.options.Collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

func NewIndex(opts ...index.Option) index.Index {
	options := index.NewOptions(opts...)

	if len(options.Location) == 0 || len(options.Collection) == 0 || options.VectorSize < 1 {
		panic("missing location, collection, or vector size for milvus index")
	}

	ctx, cancel := context.WithTimeout(options.Context, 30*time.Second)
	defer cancel()

	var (
		c   client.Client
		err error
	)

	if len(options.ApiKey) > 0 {
		c, err = client.NewClient(ctx, client.Config{
			Address: options.Location,
			APIKey:  options.ApiKey,
		})
	} else {
		c, err = client.NewGrpcClient(ctx, options.Location)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to create milvus client: %v", err))
	}

	m := &milvusIndex{
		options: options,
		client:  c,
	}

	if err := m.configure(ctx); err != nil {
		panic(err)
	}

	return m
}
