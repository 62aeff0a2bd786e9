package doctors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	input *s3.PutObjectInput
	err   error
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.input = in
	return &s3.PutObjectOutput{}, m.err
}

func TestS3PhotoStoreUpload(t *testing.T) {
	client := &mockS3{}
	store := NewS3PhotoStore(client, "clinic-photos", "ap-south-1", "")

	url, err := store.Upload(context.Background(), "doctors/d1/photo.jpg", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)

	assert.Equal(t, "https://clinic-photos.s3.ap-south-1.amazonaws.com/doctors/d1/photo.jpg", url)
	assert.Equal(t, "clinic-photos", *client.input.Bucket)
	assert.Equal(t, "image/jpeg", *client.input.ContentType)
}

func TestS3PhotoStoreCustomBaseAndError(t *testing.T) {
	client := &mockS3{}
	store := NewS3PhotoStore(client, "b", "r", "https://cdn.clinic.example/")
	url, err := store.Upload(context.Background(), "k.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.clinic.example/k.png", url)

	client.err = errors.New("access denied")
	_, err = store.Upload(context.Background(), "k.png", "image/png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "s3 put k.png")
}
