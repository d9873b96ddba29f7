package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	storage "google.golang.org/api/storage/v1"

	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/gcp"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

const (
	pingTimeout         = 5 * time.Second
	defaultCacheControl = "private, max-age=0"
)

// Uploader stores an object and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, object, contentType string, body []byte) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type objectAPI interface {
	insert(ctx context.Context, bucket string, obj *storage.Object, body []byte, contentType string) (*storage.Object, error)
	list(ctx context.Context, bucket string) error
}

type Client struct {
	api           objectAPI
	defaultBucket string
	publicBaseURL string
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcpCfg config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	svc, err := storage.NewService(ctx, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating storage service: %w", err)
	}

	client := &Client{
		api:           serviceAPI{svc: svc},
		defaultBucket: cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs.client_initialized")
	}
	return client, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// Upload writes body to the default bucket and returns its public URL.
func (c *Client) Upload(ctx context.Context, object, contentType string, body []byte) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("gcs client not initialized")
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errors.New("object name is required")
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	stored, err := c.api.insert(ctx, c.defaultBucket, &storage.Object{
		Name:         object,
		ContentType:  contentType,
		CacheControl: defaultCacheControl,
	}, body, contentType)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", object, err)
	}
	if stored != nil && stored.Name != "" {
		object = stored.Name
	}
	return c.PublicURL(object), nil
}

// PublicURL builds the served URL of an object in the default bucket.
func (c *Client) PublicURL(object string) string {
	base := "https://storage.googleapis.com"
	if c != nil && c.publicBaseURL != "" {
		base = c.publicBaseURL
	}
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/%s/%s", base, url.PathEscape(c.DefaultBucket()), strings.Join(segments, "/"))
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.api.list(ctx, c.defaultBucket)
}

func (c *Client) Close() error {
	return nil
}

// IsNotFound reports a 404 from the storage API.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

type serviceAPI struct {
	svc *storage.Service
}

func (s serviceAPI) insert(ctx context.Context, bucket string, obj *storage.Object, body []byte, contentType string) (*storage.Object, error) {
	return s.svc.Objects.Insert(bucket, obj).
		Media(bytes.NewReader(body), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
}

func (s serviceAPI) list(ctx context.Context, bucket string) error {
	_, err := s.svc.Objects.List(bucket).MaxResults(1).Context(ctx).Do()
	return err
}
