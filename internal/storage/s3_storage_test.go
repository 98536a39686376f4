package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestPutImage(t *testing.T) {
	client := new(mockS3)
	var uploaded *s3.PutObjectInput
	client.On("PutObject", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { uploaded = args.Get(1).(*s3.PutObjectInput) }).
		Return(&s3.PutObjectOutput{}, nil)

	st := newS3Storage(client, "bucket", "https://cdn.luxemap.com/")
	url, err := st.PutImage(context.Background(), "7", "image/png", []byte("png"))
	require.NoError(t, err)

	require.NotNil(t, uploaded)
	key := aws.ToString(uploaded.Key)
	assert.True(t, strings.HasPrefix(key, "enhanced/7/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "bucket", aws.ToString(uploaded.Bucket))
	assert.Equal(t, "image/png", aws.ToString(uploaded.ContentType))
	body, _ := io.ReadAll(uploaded.Body)
	assert.Equal(t, "png", string(body))
	assert.Equal(t, "https://cdn.luxemap.com/"+key, url)
}

func TestPutImage_Error(t *testing.T) {
	client := new(mockS3)
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	st := newS3Storage(client, "bucket", "https://cdn")
	_, err := st.PutImage(context.Background(), "1", "image/jpeg", []byte("x"))
	assert.ErrorContains(t, err, "denied")
}
