package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/storage"
	gazette_errors "gazette-chat/pkg/errors"
)

const maxMediaSizeBytes = 64 << 20

// mediaContentTypes maps accepted upload content types to the message type
// the resulting media attaches to.
var mediaContentTypes = map[string]domain.MessageType{
	"image/jpeg":      domain.MessageTypeImage,
	"image/png":       domain.MessageTypeImage,
	"image/gif":       domain.MessageTypeImage,
	"image/webp":      domain.MessageTypeImage,
	"audio/ogg":       domain.MessageTypeVoice,
	"audio/mpeg":      domain.MessageTypeVoice,
	"audio/webm":      domain.MessageTypeVoice,
	"video/mp4":       domain.MessageTypeVideo,
	"video/webm":      domain.MessageTypeVideo,
	"application/pdf": domain.MessageTypeFile,
}

type UploadService struct {
	storage *storage.Client
}

func NewUploadService(storage *storage.Client) *UploadService {
	return &UploadService{storage: storage}
}

type PresignInput struct {
	UploaderID  uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
}

type PresignResult struct {
	UploadURL   string
	Headers     map[string]string
	MediaURL    string
	MessageType domain.MessageType
}

// CreatePresignedMediaUpload returns a one-shot PUT URL for the client and
// the public MediaURL to reference once the upload finishes.
func (s *UploadService) CreatePresignedMediaUpload(ctx context.Context, in PresignInput) (PresignResult, error) {
	if s.storage == nil {
		return PresignResult{}, gazette_errors.ErrValidation
	}
	if in.UploaderID == uuid.Nil || strings.TrimSpace(in.FileName) == "" {
		return PresignResult{}, gazette_errors.ErrValidation
	}
	if in.SizeBytes <= 0 || in.SizeBytes > maxMediaSizeBytes {
		return PresignResult{}, gazette_errors.ErrTooLarge
	}
	msgType, ok := mediaContentTypes[strings.ToLower(in.ContentType)]
	if !ok {
		return PresignResult{}, gazette_errors.ErrValidation
	}

	key := buildMediaKey(in.UploaderID, in.FileName)
	uploadURL, headers, err := s.storage.PresignPut(ctx, key, in.ContentType, in.SizeBytes)
	if err != nil {
		return PresignResult{}, err
	}

	return PresignResult{
		UploadURL:   uploadURL,
		Headers:     headers,
		MediaURL:    s.storage.FileURL(key),
		MessageType: msgType,
	}, nil
}

func buildMediaKey(uploaderID uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	base := fmt.Sprintf("media/%s/%s", uploaderID.String(), uuid.New().String())
	if ext == "" {
		return base
	}
	return base + ext
}
