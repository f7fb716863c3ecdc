package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/brain/index"
)

type fakeQdrant struct {
	mtx      sync.Mutex
	exists   bool
	requests []string
	points   []qdrantPoint
	search   qdrantSearchRequest
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/notes":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","result":{}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/notes":
		f.exists = true
		_, _ = w.Write([]byte(`{"status":"ok","result":true}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/notes/index":
		_, _ = w.Write([]byte(`{"status":"ok","result":{}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/notes/points":
		var req struct {
			Points []qdrantPoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.points = append(f.points, req.Points...)
		_, _ = w.Write([]byte(`{"status":"ok","result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/notes/points/search":
		_ = json.NewDecoder(r.Body).Decode(&f.search)
		_, _ = w.Write([]byte(`{"status":"ok","result":[{"id":"e1","score":0.93,"payload":{"item_id":"i1","category":"PROJECTS"}}]}`))
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func TestNewIndex_CreatesMissingCollection(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	NewIndex(index.WithLocation(srv.URL), index.WithCollection("notes"), index.WithVectorSize(3))

	assert.Equal(t, []string{
		"GET /collections/notes",
		"PUT /collections/notes",
		"PUT /collections/notes/index",
		"PUT /collections/notes/index",
	}, fake.requests)
}

func TestInsertAndQuery(t *testing.T) {
	fake := &fakeQdrant{exists: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx := NewIndex(index.WithLocation(srv.URL), index.WithCollection("notes"), index.WithVectorSize(3))

	err := idx.Insert(context.Background(), index.Entry{
		Category:    "PROJECTS",
		EmbeddingId: "e1",
		ItemId:      "i1",
		Backend:     "openai",
		Vector:      []float32{1, 0, 0},
	})
	require.NoError(t, err)
	require.Len(t, fake.points, 1)
	assert.Equal(t, "e1", fake.points[0].Id)
	assert.Equal(t, "i1", fake.points[0].Payload["item_id"])
	assert.Equal(t, "openai", fake.points[0].Payload["backend"])

	hits, err := idx.Query(context.Background(), "PROJECTS", []float32{1, 0, 0}, index.WithTopK(5), index.WithBackend("openai"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, index.Hit{EmbeddingId: "e1", ItemId: "i1", Score: 0.93}, hits[0])

	assert.Equal(t, 5, fake.search.Limit)
	require.Len(t, fake.search.Filter.Must, 2)
	assert.Equal(t, "category", fake.search.Filter.Must[0].Key)
	assert.Equal(t, "backend", fake.search.Filter.Must[1].Key)
}

func TestQuery_ServerErrorIsUnavailable(t *testing.T) {
	fake := &fakeQdrant{exists: true}
	srv := httptest.NewServer(fake)

	idx := NewIndex(index.WithLocation(srv.URL), index.WithCollection("notes"), index.WithVectorSize(3))
	srv.Close()

	_, err := idx.Query(context.Background(), "PROJECTS", []float32{1, 0, 0})
	assert.ErrorIs(t, err, index.ErrUnavailable)
}
