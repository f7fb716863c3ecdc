package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/internal/service/ingest"
	"github.com/w-h-a/brain/server"
	"github.com/w-h-a/brain/store"
	"go.uber.org/zap"
)

// Brain is the part of the pipeline the HTTP surface drives.
type Brain interface {
	Handle(ctx context.Context, text string, metadata map[string]string) (ingest.Reply, error)
	Records(ctx context.Context, category classifier.Category, status string) ([]store.Record, error)
}

type noteRequest struct {
	Text      string `json:"text"`
	MessageId string `json:"message_id"`
	Source    string `json:"source"`
}

type recordResponse struct {
	ItemId       string            `json:"item_id"`
	Category     string            `json:"category"`
	Name         string            `json:"name,omitempty"`
	Status       string            `json:"status,omitempty"`
	Fields       map[string]string `json:"fields"`
	OriginalText string            `json:"original_text"`
	Confidence   int               `json:"confidence"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type httpServer struct {
	options      server.Options
	maxNoteBytes int64
	brain        Brain
	router       *mux.Router
	srv          *http.Server
}

func (s *httpServer) Start() error {
	s.options.Logger.Info("http server listening", zap.String("address", s.options.Address))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *httpServer) Handler() http.Handler {
	return s.router
}

func (s *httpServer) postNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxNoteBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if len(strings.TrimSpace(req.Text)) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	metadata := map[string]string{
		ingest.MetadataMessageId:  req.MessageId,
		ingest.MetadataSource:     req.Source,
		ingest.MetadataReceivedAt: time.Now().UTC().Format(time.RFC3339),
	}

	reply, err := s.brain.Handle(r.Context(), req.Text, metadata)
	if err != nil {
		s.options.Logger.Error("failed to handle note", zap.String("message_id", req.MessageId), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "record store unavailable, retry later"})
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (s *httpServer) getRecords(w http.ResponseWriter, r *http.Request) {
	category, ok := classifier.ParseCategory(mux.Vars(r)["category"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown category"})
		return
	}

	records, err := s.brain.Records(r.Context(), category, r.URL.Query().Get("status"))
	if err != nil {
		s.options.Logger.Error("failed to list records", zap.String("category", category.String()), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "record store unavailable"})
		return
	}

	rsp := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		rsp = append(rsp, recordResponse{
			ItemId:       rec.ItemId,
			Category:     rec.Category,
			Name:         rec.Name(),
			Status:       rec.Status(),
			Fields:       rec.Fields,
			OriginalText: rec.OriginalText,
			Confidence:   rec.Confidence,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, rsp)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func NewServer(brain Brain, opts ...server.Option) *httpServer {
	if brain == nil {
		panic("http server requires a brain")
	}

	options := server.NewOptions(opts...)

	s := &httpServer{
		options:      options,
		maxNoteBytes: maxNoteBytesFrom(options.Context),
		brain:        brain,
		router:       mux.NewRouter(),
	}

	s.router.HandleFunc("/v1/notes", s.postNote).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/records/{category}", s.getRecords).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	if ms, ok := MiddlewareFrom(options.Context); ok {
		for _, m := range ms {
			s.router.Use(mux.MiddlewareFunc(m))
		}
	}

	s.srv = &http.Server{
		Addr:              options.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}
