package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/NomadCrew/timer-sync-backend/config"
	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var avatarAllowedMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AvatarService validates profile images and stores them in S3.
type AvatarService struct {
	client ObjectPutter
	cfg    config.AvatarConfig
	log    *zap.SugaredLogger
}

func NewAvatarService(client ObjectPutter, cfg config.AvatarConfig) *AvatarService {
	return &AvatarService{
		client: client,
		cfg:    cfg,
		log:    logger.GetLogger().Named("AvatarService"),
	}
}

// MaxBytes is the largest accepted upload.
func (s *AvatarService) MaxBytes() int64 {
	return s.cfg.MaxBytes
}

// Upload sniffs the content type, enforces the size limit and stores the image
// under a fresh key. It returns the public URL of the stored object.
func (s *AvatarService) Upload(ctx context.Context, userID string, file io.Reader, size int64) (string, error) {
	if s.cfg.Bucket == "" {
		return "", apperrors.InternalServerError("Avatar storage is not configured")
	}
	if size <= 0 {
		return "", apperrors.ValidationFailed("invalid_file", "file is empty")
	}
	if size > s.cfg.MaxBytes {
		return "", apperrors.ValidationFailed("file_too_large", fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxBytes))
	}

	sniffBuf := make([]byte, 512)
	n, err := io.ReadFull(file, sniffBuf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", apperrors.ValidationFailed("invalid_file", "failed to read uploaded file")
	}
	detected := mimetype.Detect(sniffBuf[:n])
	if !avatarAllowedMimes[detected.String()] {
		return "", apperrors.ValidationFailed("invalid_mime_type",
			fmt.Sprintf("MIME type %s is not allowed. Allowed: jpeg, png, webp, heic", detected.String()))
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), detected.Extension())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          io.MultiReader(bytes.NewReader(sniffBuf[:n]), file),
		ContentType:   aws.String(detected.String()),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", apperrors.Dependency("upload avatar", err)
	}

	url := s.publicURL(key)
	s.log.Infow("Avatar uploaded", "userID", userID, "key", key, "size", size)
	return url, nil
}

func (s *AvatarService) publicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.cfg.Bucket, key)
}
