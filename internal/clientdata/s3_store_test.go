package clientdata

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket; single-part uploads only
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = body
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	panic("multipart upload not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	panic("multipart upload not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	panic("multipart upload not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	panic("multipart upload not expected")
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "compass/")

	require.NoError(t, store.Put(ctx, "openai_cache_k", []byte(`{"x":1}`)))
	assert.Contains(t, fake.objects, "compass/openai_cache_k")

	got, err := store.Get(ctx, "openai_cache_k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))

	keys, err := store.Keys(ctx, "openai_cache_")
	require.NoError(t, err)
	assert.Equal(t, []string{"openai_cache_k"}, keys)

	require.NoError(t, store.Delete(ctx, "openai_cache_k"))
	_, err = store.Get(ctx, "openai_cache_k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_BacksCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	c := NewCache(NewS3Store(fake, "bucket", ""), zerolog.Nop())

	c.Set(ctx, "a", "alpha")
	fake.objects["unrelated"] = []byte("1")

	restarted := NewCache(NewS3Store(fake, "bucket", ""), zerolog.Nop())
	data, ok := restarted.Get(ctx, "a")
	require.True(t, ok)
	assert.JSONEq(t, `"alpha"`, string(data))

	restarted.ClearAll(ctx)
	assert.Len(t, fake.objects, 1)
	assert.Contains(t, fake.objects, "unrelated")
}

func TestNewS3StoreFromOptions_RequiresBucket(t *testing.T) {
	_, err := NewS3StoreFromOptions(context.Background(), S3Options{})
	assert.Error(t, err)
}
