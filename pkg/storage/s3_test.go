package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutGetDelete(t *testing.T) {
	client := newFakeS3()
	store := NewS3StoreWithClient(client, "docs", "/onboarding/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "applications/1/photo.jpg", "image/jpeg", strings.NewReader("jpegdata"), 8))
	assert.Contains(t, client.objects, "onboarding/applications/1/photo.jpg")
	assert.Equal(t, "image/jpeg", client.types["onboarding/applications/1/photo.jpg"])

	rc, err := store.Get(ctx, "applications/1/photo.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpegdata", string(data))

	require.NoError(t, store.Delete(ctx, "applications/1/photo.jpg"))
	_, err = store.Get(ctx, "applications/1/photo.jpg")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "applications/abc/pan_card.pdf", DocumentKey("abc", "pan_card", ".PDF"))
	assert.Equal(t, "applications/abc/photo", DocumentKey("abc", "photo", ""))
}
