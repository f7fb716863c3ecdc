package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/internal/metrics"
	"github.com/w-h-a/brain/internal/service/dedup"
	"github.com/w-h-a/brain/note"
	"github.com/w-h-a/brain/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/w-h-a/brain/internal/service/ingest")

type Reason string

const (
	ReasonFiled                     Reason = "filed"
	ReasonLowConfidence             Reason = "low_confidence"
	ReasonClassificationUnavailable Reason = "classification_unavailable"
	ReasonEmptyNote                 Reason = "empty_note"
)

// Metadata keys understood by Handle.
const (
	MetadataMessageId  = "message_id"
	MetadataSource     = "source"
	MetadataReceivedAt = "received_at"
)

type Classifier interface {
	Classify(ctx context.Context, text string) (classifier.Result, error)
}

type Resolver interface {
	Resolve(ctx context.Context, n note.Note, classification classifier.Result) (dedup.Resolution, error)
}

type Outcome struct {
	Filed          bool
	Reason         Reason
	Classification classifier.Result
	Resolution     dedup.Resolution
}

type Service struct {
	options    Options
	classifier Classifier
	resolver   Resolver
	store      store.Store
}

// Ingest classifies a note and, when admitted, files it. A note that is not
// filed is reported through Outcome.Reason; only classification and store
// failures are returned as errors.
func (s *Service) Ingest(ctx context.Context, n note.Note) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "ingest.Ingest")
	defer span.End()

	if len(strings.TrimSpace(n.Text)) == 0 {
		metrics.IngestTotal.WithLabelValues(string(ReasonEmptyNote), "").Inc()
		return Outcome{Reason: ReasonEmptyNote}, nil
	}

	result, err := s.classifier.Classify(ctx, n.Text)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(string(ReasonClassificationUnavailable), "").Inc()
		s.options.Logger.Error("note not filed, classification unavailable",
			zap.String("message_id", n.MessageId),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{Reason: ReasonClassificationUnavailable}, err
	}

	category := result.Category.String()

	metrics.ConfidenceScore.Observe(float64(result.Confidence))
	span.SetAttributes(
		attribute.String("brain.category", category),
		attribute.Int("brain.confidence", result.Confidence),
		attribute.String("brain.classifier", result.Backend),
	)

	if !Admit(result, s.options.ConfidenceThreshold) {
		metrics.IngestTotal.WithLabelValues(string(ReasonLowConfidence), category).Inc()
		s.options.Logger.Info("note not filed, confidence below threshold",
			zap.String("message_id", n.MessageId),
			zap.String("category", category),
			zap.Int("confidence", result.Confidence),
			zap.Int("threshold", s.options.ConfidenceThreshold),
		)
		return Outcome{Reason: ReasonLowConfidence, Classification: result}, nil
	}

	resolution, err := s.resolver.Resolve(ctx, n, result)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("error", category).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{Classification: result}, err
	}

	for _, w := range resolution.Warnings {
		s.options.Logger.Warn("note filed with degraded dedup",
			zap.String("message_id", n.MessageId),
			zap.String("category", category),
			zap.Error(w),
		)
	}

	metrics.IngestTotal.WithLabelValues(string(resolution.Action), category).Inc()

	return Outcome{
		Filed:          true,
		Reason:         ReasonFiled,
		Classification: result,
		Resolution:     resolution,
	}, nil
}

// Handle is the transport-facing entry point. Anything short of a store
// failure becomes a reply; store failures are returned so the caller can retry.
func (s *Service) Handle(ctx context.Context, text string, metadata map[string]string) (Reply, error) {
	n := note.Note{
		Text:       strings.TrimSpace(text),
		MessageId:  metadata[MetadataMessageId],
		Source:     metadata[MetadataSource],
		ReceivedAt: receivedAt(metadata[MetadataReceivedAt]),
	}

	outcome, err := s.Ingest(ctx, n)
	if err != nil && errors.Is(err, store.ErrUnavailable) {
		return Reply{}, err
	}
	if err != nil && !errors.Is(err, classifier.ErrUnavailable) {
		s.options.Logger.Error("note not filed", zap.String("message_id", n.MessageId), zap.Error(err))
		return Reply{Summary: "Could not save this note right now - not saved. Please resend it."}, nil
	}

	return replyFor(n.Text, outcome), nil
}

func (s *Service) Records(ctx context.Context, category classifier.Category, status string) ([]store.Record, error) {
	var opts []store.QueryOption
	if len(status) > 0 {
		opts = append(opts, store.WithStatus(status))
	}
	return s.store.QueryByCategory(ctx, category.String(), opts...)
}

func receivedAt(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func New(c Classifier, r Resolver, s store.Store, opts ...Option) *Service {
	if c == nil || r == nil || s == nil {
		panic("ingest service requires a classifier, a resolver and a store")
	}

	return &Service{
		options:    NewOptions(opts...),
		classifier: c,
		resolver:   r,
		store:      s,
	}
}
