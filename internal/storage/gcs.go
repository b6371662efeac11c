package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSRemote keeps the history file as one object in a Cloud Storage bucket.
type GCSRemote struct {
	client *gcs.Client
	bucket string
	object string
}

// NewGCSRemote builds a client authenticated with a service account key file.
// Extra options (endpoint, HTTP client) are appended after the credentials.
func NewGCSRemote(ctx context.Context, bucket, object, credentialsFile string, opts ...option.ClientOption) (*GCSRemote, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is not set")
	}

	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSRemote{client: client, bucket: bucket, object: object}, nil
}

func (r *GCSRemote) Close() error {
	return r.client.Close()
}

func (r *GCSRemote) Download(ctx context.Context, dst io.Writer) (int64, error) {
	rd, err := r.client.Bucket(r.bucket).Object(r.object).NewReader(ctx)
	if err != nil {
		return 0, r.mapError(err)
	}
	defer rd.Close()

	if _, err := io.Copy(dst, rd); err != nil {
		return 0, fmt.Errorf("download gs://%s/%s: %w", r.bucket, r.object, err)
	}
	return rd.Attrs.Generation, nil
}

func (r *GCSRemote) Upload(ctx context.Context, src io.Reader, cond Precondition) (int64, error) {
	obj := r.client.Bucket(r.bucket).Object(r.object)
	if c, ok := gcsConditions(cond); ok {
		obj = obj.If(c)
	}

	// Cancelling the writer's context abandons the upload; Close would commit it.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(wctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, src); err != nil {
		cancel()
		return 0, r.mapError(err)
	}
	if err := w.Close(); err != nil {
		return 0, r.mapError(err)
	}
	return w.Attrs().Generation, nil
}

func gcsConditions(cond Precondition) (gcs.Conditions, bool) {
	switch {
	case cond.DoesNotExist:
		return gcs.Conditions{DoesNotExist: true}, true
	case cond.GenerationMatch > 0:
		return gcs.Conditions{GenerationMatch: cond.GenerationMatch}, true
	default:
		return gcs.Conditions{}, false
	}
}

func (r *GCSRemote) mapError(err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: gs://%s/%s", ErrRemoteNotFound, r.bucket, r.object)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: gs://%s/%s", ErrConflict, r.bucket, r.object)
	}
	return fmt.Errorf("gs://%s/%s: %w", r.bucket, r.object, err)
}
