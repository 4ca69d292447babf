package storagesvc

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
)

// B2Storage keeps files in a Backblaze B2 bucket.
type B2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ core.FileStorage = (*B2Storage)(nil)

func NewB2Storage(ctx context.Context, conf core.StorageConfig) (*B2Storage, error) {
	client, err := b2.NewClient(ctx, conf.B2KeyID, conf.B2AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting bucket "+conf.B2Bucket)
	}
	return &B2Storage{client: client, bucket: bucket}, nil
}

func (s *B2Storage) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing writer")
	}
	return obj.URL(), nil
}

func (s *B2Storage) Download(ctx context.Context, key string, w io.Writer) error {
	r := s.bucket.Object(key).NewReader(ctx)
	defer func() { _ = r.Close() }()

	if _, err := io.Copy(w, r); err != nil {
		if b2.IsNotExist(err) {
			return core.NewNotFoundError("file not found")
		}
		return errors.Wrap(err, "reading object")
	}
	return nil
}

func (s *B2Storage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *B2Storage) List(ctx context.Context, prefix string) ([]core.StoredObject, error) {
	var objects []core.StoredObject
	iter := s.bucket.List(ctx, b2.ListPrefix(prefix))
	for iter.Next() {
		obj := iter.Object()
		attrs, err := obj.Attrs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "reading attrs of "+obj.Name())
		}
		objects = append(objects, core.StoredObject{
			Key:        obj.Name(),
			Size:       attrs.Size,
			UploadedAt: attrs.UploadTimestamp,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "listing objects")
	}
	return objects, nil
}
