package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/dronerelay/pkg/log"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

// presignExpiry bounds the lifetime of download links returned with a stored photo.
const presignExpiry = 15 * time.Minute

type minioProvider struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOProvider stores photos in an S3-compatible bucket.
func NewMinIOProvider(opts *options.S3Options) (Provider, error) {
	// Self-signed certificates are common on field deployments.
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &minioProvider{
		client:     client,
		bucketName: opts.BucketName,
	}, nil
}

func (p *minioProvider) Init(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", p.bucketName)
		if err := p.client.MakeBucket(ctx, p.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (p *minioProvider) Put(ctx context.Context, name string, data []byte) (Photo, error) {
	if err := ValidateName(name); err != nil {
		return Photo{}, err
	}

	info, err := p.client.PutObject(ctx, p.bucketName, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return Photo{}, fmt.Errorf("failed to upload photo: %w", err)
	}

	photo := newPhoto(name, info.Size, time.Now())
	u, err := p.client.PresignedGetObject(ctx, p.bucketName, name, presignExpiry, make(url.Values))
	if err != nil {
		log.Warn("Failed to presign photo URL", "object", name, "error", err)
	} else {
		photo.URL = u.String()
	}
	return photo, nil
}

func (p *minioProvider) Open(ctx context.Context, name string) (io.ReadCloser, Photo, error) {
	if err := ValidateName(name); err != nil {
		return nil, Photo{}, err
	}

	obj, err := p.client.GetObject(ctx, p.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, Photo{}, fmt.Errorf("failed to get photo: %w", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, Photo{}, ErrNotFound
		}
		return nil, Photo{}, fmt.Errorf("failed to stat photo: %w", err)
	}
	return obj, newPhoto(name, stat.Size, stat.LastModified), nil
}
