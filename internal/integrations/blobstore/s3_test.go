package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	etags   map[string]string
	getErr  error
	headErr error
	putErr  error

	getCalls  int
	headCalls int
	lastPut   *s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}, etags: map[string]string{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v)), ETag: aws.String(f.etags[*in.Key])}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headCalls++
	if f.headErr != nil {
		return nil, f.headErr
	}
	v, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(f.etags[*in.Key]), ContentLength: aws.Int64(int64(len(v)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	buf, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = string(buf)
	etag := `"` + string(rune('a'+len(f.etags))) + `"`
	f.etags[*in.Key] = etag
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func mustNew(t *testing.T, api *fakeS3) *Store {
	t.Helper()
	s, err := New(api, "site-bucket", WithPrefix("/chatbot/"))
	require.NoError(t, err)
	return s
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, "b")
	require.Error(t, err)
	_, err = New(newFakeS3(), " ")
	require.Error(t, err)
}

func TestSetThenGet(t *testing.T) {
	api := newFakeS3()
	s := mustNew(t, api)

	etag, err := s.Set(context.Background(), "context", "You are helpful.")
	require.NoError(t, err)
	require.NotEmpty(t, etag)
	require.Equal(t, "chatbot/context", *api.lastPut.Key)
	require.Equal(t, "site-bucket", *api.lastPut.Bucket)

	blob, err := s.Get(context.Background(), "context")
	require.NoError(t, err)
	require.Equal(t, "You are helpful.", blob.Content)
	require.Equal(t, etag, blob.ETag)

	meta, err := s.Metadata(context.Background(), "context")
	require.NoError(t, err)
	require.Equal(t, etag, meta.ETag)
	require.Equal(t, int64(len("You are helpful.")), meta.Size)
}

func TestGet_NotFound(t *testing.T) {
	s := mustNew(t, newFakeS3())
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Metadata(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_NotFoundFromGenericAPIError(t *testing.T) {
	api := newFakeS3()
	api.headErr = &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	s := mustNew(t, api)
	_, err := s.Metadata(context.Background(), "context")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_APIError(t *testing.T) {
	api := newFakeS3()
	api.getErr = errors.New("AccessDenied")
	s := mustNew(t, api)
	_, err := s.Get(context.Background(), "context")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "AccessDenied")
}

func TestSet_APIError(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("SlowDown")
	s := mustNew(t, api)
	_, err := s.Set(context.Background(), "context", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "put")
}

func TestEmptyKey(t *testing.T) {
	s := mustNew(t, newFakeS3())
	_, err := s.Get(context.Background(), " ")
	require.Error(t, err)
	_, err = s.Set(context.Background(), "", "x")
	require.Error(t, err)
}
