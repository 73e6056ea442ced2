// Package images talks to the object store that hosts product pictures.
package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotImageURL marks URLs that do not point into the store.
var ErrNotImageURL = errors.New("not an image store url")

// Store deletes images by their delivery URL.
type Store interface {
	Delete(ctx context.Context, imageURL string) error
}

// HTTPStore issues DELETE {baseURL}/{public id} with a bearer token.
type HTTPStore struct {
	baseURL    string
	token      string
	tracer     trace.Tracer
	httpClient *http.Client
}

func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		tracer:  otel.Tracer("github.com/ariefcatur/boutique-orders/internal/images"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
			},
		},
	}
}

// Delete treats 404 as success: the image is gone either way.
func (s *HTTPStore) Delete(ctx context.Context, imageURL string) error {
	id, ok := PublicID(imageURL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotImageURL, imageURL)
	}
	target := s.baseURL + "/" + escapePath(id)

	ctx, span := s.tracer.Start(ctx, "images.Delete", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("image.public_id", id),
			attribute.String("http.method", http.MethodDelete),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode/100 == 2 {
		return nil
	}
	err = fmt.Errorf("image store returned %s for %s", resp.Status, id)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func escapePath(id string) string {
	segs := strings.Split(id, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
