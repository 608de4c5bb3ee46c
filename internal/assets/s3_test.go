package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubObjects struct {
	objects   map[string][]byte
	deleteErr error
}

func (s *stubObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := s.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (s *stubObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	delete(s.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (s *stubObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.objects[aws.ToString(in.Key)] = nil
	return &s3.PutObjectOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	objects := &stubObjects{objects: map[string][]byte{"experiences/a.jpg": nil}}
	backend := NewS3Backend(objects, "media", "https://media.example.com/")

	ref := "https://media.example.com/experiences/a.jpg"
	assert.True(t, backend.Owns(ref))
	assert.False(t, backend.Owns("https://media.example.community/x.jpg"))
	assert.Equal(t, "experiences/a.jpg", backend.Key(ref+"?x=1"))

	outcome, err := backend.Delete(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Empty(t, objects.objects)

	outcome, err = backend.Delete(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}

func TestS3Backend_DeleteError(t *testing.T) {
	objects := &stubObjects{
		objects:   map[string][]byte{"experiences/a.jpg": nil},
		deleteErr: errors.New("access denied"),
	}
	backend := NewS3Backend(objects, "media", "https://media.example.com")

	outcome, err := backend.Delete(context.Background(), "https://media.example.com/experiences/a.jpg")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestNewS3Client_CustomEndpoint(t *testing.T) {
	client, err := NewS3Client(context.Background(), S3Options{
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "us-east-1", opts.Region)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}
