package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/beam-cloud/mytar/pkg/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type S3ArchiveStorageCredentials struct {
	AccessKey string
	SecretKey string
}

// S3ArchiveStorage keeps an archive as a single S3 object. Archives are
// streamed in both directions and never staged on local disk.
type S3ArchiveStorage struct {
	svc    *s3.Client
	bucket string
	key    string
}

type S3ArchiveStorageOpts struct {
	Bucket         string
	Key            string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	HTTPClient     *http.Client
}

func NewS3ArchiveStorage(ctx context.Context, opts S3ArchiveStorageOpts) (*S3ArchiveStorage, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if opts.AccessKey != "" && opts.SecretKey != "" {
		accessKey = opts.AccessKey
		secretKey = opts.SecretKey
	}

	cfg, err := getAWSConfig(ctx, accessKey, secretKey, opts.Region, opts.Endpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// Check to see if we have access to the bucket
	_, err = svc.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot access bucket <%s>: %w", opts.Bucket, err)
	}

	return &S3ArchiveStorage{
		svc:    svc,
		bucket: opts.Bucket,
		key:    opts.Key,
	}, nil
}

func getAWSConfig(ctx context.Context, accessKey string, secretKey string, region string, endpoint string, httpClient *http.Client) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if endpoint != "" {
		endpointResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		})
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(endpointResolver))
	}

	if accessKey != "" && secretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	if httpClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(httpClient))
	}

	return config.LoadDefaultConfig(ctx, loadOpts...)
}

// Store streams the archive produced by write into the object through a
// multipart upload. If write fails the upload is aborted and no object is
// created.
func (s3c *S3ArchiveStorage) Store(ctx context.Context, write WriteFunc) error {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	var writeErr error
	g.Go(func() error {
		writeErr = write(pw)
		pw.CloseWithError(writeErr)
		return writeErr
	})

	g.Go(func() error {
		uploader := manager.NewUploader(s3c.svc)
		_, err := uploader.Upload(gctx, &s3.PutObjectInput{
			Bucket: aws.String(s3c.bucket),
			Key:    aws.String(s3c.key),
			Body:   pr,
		})
		if err != nil {
			err = fmt.Errorf("failed to upload archive: %w", err)
		}
		pr.CloseWithError(err)
		return err
	})

	err := g.Wait()
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return err
	}

	log.Debug().Str("bucket", s3c.bucket).Str("key", s3c.key).Msg("archive uploaded")
	return nil
}

func (s3c *S3ArchiveStorage) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s3c.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3c.bucket),
		Key:    aws.String(s3c.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", common.ErrArchiveNotFound, s3c.bucket, s3c.key)
		}
		return nil, fmt.Errorf("failed to download archive: %w", err)
	}

	return resp.Body, nil
}

func (s3c *S3ArchiveStorage) Mode() common.StorageMode {
	return common.StorageModeS3
}
