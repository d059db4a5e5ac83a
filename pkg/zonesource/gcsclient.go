package zonesource

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// The interfaces below abstract the Google Cloud Storage client so GCSSource
// can be unit tested against an in-memory bucket instead of a live service.

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle. NewReader reports a
// missing object with storage.ErrObjectNotExist, like the concrete client.
type GCSObjectHandle interface {
	NewReader(ctx context.Context) (GCSReader, error)
	NewWriter(ctx context.Context) GCSWriter
}

// GCSReader abstracts a *storage.Reader.
type GCSReader interface {
	io.ReadCloser
}

// GCSWriter abstracts a *storage.Writer. Closing it commits the object.
type GCSWriter interface {
	io.WriteCloser
}

// gcsClientAdapter wraps a *storage.Client to satisfy the GCSClient interface.
type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter makes the concrete *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (GCSReader, error) {
	return a.handle.NewReader(ctx)
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context) GCSWriter {
	return a.handle.NewWriter(ctx)
}
