package gcs

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	storage "google.golang.org/api/storage/v1"
)

type fakeObjects struct {
	inserted    *storage.Object
	body        []byte
	contentType string
	insertErr   error
	listErr     error
}

func (f *fakeObjects) insert(_ context.Context, _ string, obj *storage.Object, body []byte, contentType string) (*storage.Object, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = obj
	f.body = body
	f.contentType = contentType
	return obj, nil
}

func (f *fakeObjects) list(context.Context, string) error {
	return f.listErr
}

func TestUploadReturnsPublicURL(t *testing.T) {
	api := &fakeObjects{}
	client := &Client{api: api, defaultBucket: "pg-receipts", publicBaseURL: "https://cdn.example.com"}

	url, err := client.Upload(context.Background(), "/receipts/2026/03/receipt_1.html", "text/html; charset=utf-8", []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/pg-receipts/receipts/2026/03/receipt_1.html", url)
	require.NotNil(t, api.inserted)
	assert.Equal(t, "receipts/2026/03/receipt_1.html", api.inserted.Name)
	assert.Equal(t, "text/html; charset=utf-8", api.contentType)
	assert.Equal(t, defaultCacheControl, api.inserted.CacheControl)
}

func TestUploadDetectsContentType(t *testing.T) {
	api := &fakeObjects{}
	client := &Client{api: api, defaultBucket: "b"}

	_, err := client.Upload(context.Background(), "a.html", "", []byte("<html><body>x</body></html>"))
	require.NoError(t, err)
	assert.Contains(t, api.contentType, "text/html")
}

func TestUploadErrors(t *testing.T) {
	var nilClient *Client
	_, err := nilClient.Upload(context.Background(), "a", "text/plain", nil)
	require.Error(t, err)

	client := &Client{api: &fakeObjects{}, defaultBucket: "b"}
	_, err = client.Upload(context.Background(), "  ", "text/plain", nil)
	require.Error(t, err)

	client.api = &fakeObjects{insertErr: errors.New("quota")}
	_, err = client.Upload(context.Background(), "a", "text/plain", []byte("x"))
	require.ErrorContains(t, err, "quota")
}

func TestPublicURLEscapesSegments(t *testing.T) {
	client := &Client{defaultBucket: "bucket"}
	assert.Equal(t, "https://storage.googleapis.com/bucket/a%20b/c.html", client.PublicURL("a b/c.html"))
}

func TestPing(t *testing.T) {
	client := &Client{api: &fakeObjects{}, defaultBucket: "b"}
	require.NoError(t, client.Ping(context.Background()))

	client.api = &fakeObjects{listErr: &googleapi.Error{Code: http.StatusNotFound}}
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	require.Error(t, (&Client{api: &fakeObjects{}}).Ping(context.Background()))
}
