package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/NomadCrew/timer-sync-backend/config"
	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectPutter struct {
	mock.Mock
}

func (m *mockObjectPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func avatarConfig() config.AvatarConfig {
	return config.AvatarConfig{Bucket: "avatars-bucket", MaxBytes: 1024, PublicBaseURL: "https://cdn.example.com/"}
}

func TestAvatarService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores png and returns public url", func(t *testing.T) {
		putter := new(mockObjectPutter)
		var body []byte
		putter.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Bucket == "avatars-bucket" &&
				strings.HasPrefix(*in.Key, "avatars/alice/") &&
				strings.HasSuffix(*in.Key, ".png") &&
				*in.ContentType == "image/png"
		})).Run(func(args mock.Arguments) {
			body, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
		}).Return(&s3.PutObjectOutput{}, nil)

		svc := NewAvatarService(putter, avatarConfig())
		url, err := svc.Upload(ctx, "alice", bytes.NewReader(pngBytes), int64(len(pngBytes)))

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/avatars/alice/"))
		assert.Equal(t, pngBytes, body)
		putter.AssertExpectations(t)
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		putter := new(mockObjectPutter)
		svc := NewAvatarService(putter, avatarConfig())
		text := []byte("just some plain text, definitely not an image")

		_, err := svc.Upload(ctx, "alice", bytes.NewReader(text), int64(len(text)))

		assert.True(t, apperrors.IsType(err, apperrors.ValidationError))
		putter.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	})

	t.Run("rejects oversized upload", func(t *testing.T) {
		svc := NewAvatarService(new(mockObjectPutter), avatarConfig())
		_, err := svc.Upload(ctx, "alice", bytes.NewReader(pngBytes), 4096)
		assert.True(t, apperrors.IsType(err, apperrors.ValidationError))
	})

	t.Run("storage failure", func(t *testing.T) {
		putter := new(mockObjectPutter)
		putter.On("PutObject", mock.Anything, mock.Anything).Return(nil, errBoom)

		svc := NewAvatarService(putter, avatarConfig())
		_, err := svc.Upload(ctx, "alice", bytes.NewReader(pngBytes), int64(len(pngBytes)))

		assert.True(t, apperrors.IsType(err, apperrors.DependencyError))
	})

	t.Run("default url without cdn", func(t *testing.T) {
		svc := NewAvatarService(new(mockObjectPutter), config.AvatarConfig{Bucket: "b"})
		assert.Equal(t, "https://b.s3.amazonaws.com/avatars/x.png", svc.publicURL("avatars/x.png"))
	})
}
