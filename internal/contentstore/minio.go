package contentstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openlms/studio/internal/coursekey"
)

const displayNameMetaKey = "Display-Name"

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// MinioStore keeps course assets in an S3-compatible bucket. Objects live
// under "org/course/run/<escaped display name>"; the exact display name is
// carried in object metadata so escaping never corrupts it.
type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

var _ Store = (*MinioStore)(nil)

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	// Initialize minio client object.
	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{cfg: cfg, client: minioClient}, nil
}

func (s *MinioStore) Put(ctx context.Context, key coursekey.Key, asset StaticAsset) error {
	if asset.DisplayName == "" {
		return errors.New("asset display name must not be empty")
	}
	_, err := s.client.PutObject(
		ctx,
		s.cfg.bucket,
		objectName(key, asset.DisplayName),
		bytes.NewReader(asset.Data),
		int64(len(asset.Data)),
		minio.PutObjectOptions{
			ContentType:  asset.ContentType,
			UserMetadata: map[string]string{displayNameMetaKey: asset.DisplayName},
		},
	)
	return err
}

func (s *MinioStore) Get(ctx context.Context, key coursekey.Key, displayName string) (*StaticAsset, error) {
	object, err := s.client.GetObject(ctx, s.cfg.bucket, objectName(key, displayName), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, err
	}

	return &StaticAsset{
		DisplayName: displayName,
		ContentType: info.ContentType,
		Data:        data,
	}, nil
}

func (s *MinioStore) ListForCourse(ctx context.Context, key coursekey.Key) ([]StaticAsset, error) {
	assets := []StaticAsset{}

	for object := range s.client.ListObjects(ctx, s.cfg.bucket, minio.ListObjectsOptions{
		Prefix:    coursePrefix(key),
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}

		info, err := s.client.StatObject(ctx, s.cfg.bucket, object.Key, minio.StatObjectOptions{})
		if err != nil {
			return nil, err
		}

		displayName := info.UserMetadata[displayNameMetaKey]
		if displayName == "" {
			// fall back to the escaped key segment
			displayName, err = url.PathUnescape(object.Key[len(coursePrefix(key)):])
			if err != nil {
				return nil, err
			}
		}

		asset, err := s.Get(ctx, key, displayName)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}

	return assets, nil
}

func (s *MinioStore) CopyForCourse(ctx context.Context, source, destination coursekey.Key) (int, error) {
	copied := 0

	for object := range s.client.ListObjects(ctx, s.cfg.bucket, minio.ListObjectsOptions{
		Prefix:    coursePrefix(source),
		Recursive: true,
	}) {
		if object.Err != nil {
			return copied, object.Err
		}

		dstKey := coursePrefix(destination) + object.Key[len(coursePrefix(source)):]
		_, err := s.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: s.cfg.bucket, Object: dstKey},
			minio.CopySrcOptions{Bucket: s.cfg.bucket, Object: object.Key},
		)
		if err != nil {
			return copied, err
		}
		copied++
	}

	return copied, nil
}

func (s *MinioStore) DeleteForCourse(ctx context.Context, key coursekey.Key) error {
	for object := range s.client.ListObjects(ctx, s.cfg.bucket, minio.ListObjectsOptions{
		Prefix:    coursePrefix(key),
		Recursive: true,
	}) {
		if object.Err != nil {
			return object.Err
		}
		if err := s.client.RemoveObject(ctx, s.cfg.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func coursePrefix(key coursekey.Key) string {
	return key.Org + "/" + key.Course + "/" + key.Run + "/"
}

func objectName(key coursekey.Key, displayName string) string {
	return coursePrefix(key) + url.PathEscape(displayName)
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
