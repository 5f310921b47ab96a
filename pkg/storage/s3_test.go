package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/beam-cloud/mytar/pkg/common"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	mockEndpoint = "http://s3.mock.local"
	mockBucket   = "test-bucket"
	mockKey      = "archive.mytar"
)

var (
	mockBucketURL  = regexp.MustCompile(`/test-bucket/?(\?.*)?$`)
	mockArchiveURL = regexp.MustCompile(`/test-bucket/archive\.mytar`)
)

func newMockS3Storage(t *testing.T) *S3ArchiveStorage {
	t.Helper()

	mockClient := &http.Client{}
	httpmock.ActivateNonDefault(mockClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterRegexpResponder("HEAD", mockBucketURL, httpmock.NewStringResponder(http.StatusOK, ""))

	s, err := NewS3ArchiveStorage(context.Background(), S3ArchiveStorageOpts{
		Bucket:         mockBucket,
		Key:            mockKey,
		Region:         "us-east-1",
		Endpoint:       mockEndpoint,
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
		HTTPClient:     mockClient,
	})
	require.NoError(t, err)
	return s
}

func TestS3ArchiveStorage_Store(t *testing.T) {
	s := newMockS3Storage(t)

	var uploaded []byte
	httpmock.RegisterRegexpResponder("PUT", mockArchiveURL,
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			uploaded = body
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		},
	)

	err := s.Store(context.Background(), func(w io.Writer) error {
		_, err := io.WriteString(w, "streamed archive")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "streamed archive", string(uploaded))
	assert.Equal(t, common.StorageModeS3, s.Mode())
}

func TestS3ArchiveStorage_StoreWriteFailure(t *testing.T) {
	s := newMockS3Storage(t)
	httpmock.RegisterRegexpResponder("PUT", mockArchiveURL, httpmock.NewStringResponder(http.StatusOK, ""))

	errProduce := errors.New("produce failed")
	err := s.Store(context.Background(), func(w io.Writer) error {
		w.Write([]byte("partial"))
		return errProduce
	})
	require.ErrorIs(t, err, errProduce)

	for key, count := range httpmock.GetCallCountInfo() {
		if strings.HasPrefix(key, "PUT") {
			assert.Zero(t, count, "no object may be uploaded when the archive fails")
		}
	}
}

func TestS3ArchiveStorage_Open(t *testing.T) {
	s := newMockS3Storage(t)
	httpmock.RegisterRegexpResponder("GET", mockArchiveURL, httpmock.NewBytesResponder(http.StatusOK, []byte{0x00, 0x00}))

	r, err := s.Open(context.Background())
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, content)
}

func TestS3ArchiveStorage_RoundTripLocalstack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping localstack integration test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "localstack/localstack:3",
		ExposedPorts: []string{"4566/tcp"},
		WaitingFor:   wait.ForListeningPort("4566/tcp").WithStartupTimeout(2 * time.Minute),
	}
	localstackContainer, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start localstack container")
	defer func() {
		if err := localstackContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate localstack container: %s", err)
		}
	}()

	hostPort, err := localstackContainer.MappedPort(ctx, "4566/tcp")
	require.NoError(t, err)
	hostIP, err := localstackContainer.Host(ctx)
	require.NoError(t, err)
	endpoint := "http://" + hostIP + ":" + hostPort.Port()

	cfg, err := getAWSConfig(ctx, "test", "test", "us-east-1", endpoint, nil)
	require.NoError(t, err)
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	bucketName := "test-mytar-bucket"
	_, err = s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err, "Failed to create bucket")

	storage, err := NewArchiveStorage(ctx, ArchiveStorageOpts{
		StorageInfo: &common.S3StorageInfo{
			Bucket:         bucketName,
			Key:            "archives/test.mytar",
			Region:         "us-east-1",
			Endpoint:       endpoint,
			ForcePathStyle: true,
		},
		Credentials: ArchiveStorageCredentials{
			S3: &S3ArchiveStorageCredentials{AccessKey: "test", SecretKey: "test"},
		},
	})
	require.NoError(t, err)

	payload := strings.Repeat("mytar", 4096)
	err = storage.Store(ctx, func(w io.Writer) error {
		_, err := io.WriteString(w, payload)
		return err
	})
	require.NoError(t, err)

	r, err := storage.Open(ctx)
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, string(content))

	missing, err := NewS3ArchiveStorage(ctx, S3ArchiveStorageOpts{
		Bucket:         bucketName,
		Key:            "archives/missing.mytar",
		Region:         "us-east-1",
		Endpoint:       endpoint,
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	_, err = missing.Open(ctx)
	assert.ErrorIs(t, err, common.ErrArchiveNotFound)
}
