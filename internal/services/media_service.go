package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/storage"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const (
	productImageURLExpiry = 15 * time.Minute
	productImageMaxBytes  = 10 << 20
)

var productImageContentTypes = []string{"image/png", "image/jpeg", "image/webp"}

var (
	// ErrMediaInvalidInput signals a malformed upload request.
	ErrMediaInvalidInput = errors.New("media: invalid input")
	// ErrMediaUnavailable indicates the signing backend rejected the request.
	ErrMediaUnavailable = errors.New("media: signing unavailable")
)

// UploadURLSigner issues signed URLs for direct-to-bucket uploads.
type UploadURLSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// MediaServiceDeps bundles collaborators required to construct the media service.
type MediaServiceDeps struct {
	Products repositories.ProductRepository
	Signer   UploadURLSigner
	Bucket   string
}

type mediaService struct {
	products repositories.ProductRepository
	signer   UploadURLSigner
	bucket   string
}

// NewMediaService wires dependencies into a concrete MediaService implementation.
func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	if deps.Products == nil {
		return nil, errors.New("media service: product repository is required")
	}
	if deps.Signer == nil {
		return nil, errors.New("media service: upload url signer is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("media service: bucket is required")
	}

	return &mediaService{
		products: deps.Products,
		signer:   deps.Signer,
		bucket:   strings.TrimSpace(deps.Bucket),
	}, nil
}

// SignProductImageUpload validates the request against the catalog and returns
// a short-lived signed PUT URL scoped to the product's image prefix.
func (s *mediaService) SignProductImageUpload(ctx context.Context, cmd SignProductImageCommand) (UploadTicket, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return UploadTicket{}, fmt.Errorf("%w: product id is required", ErrMediaInvalidInput)
	}
	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	if contentType == "" {
		return UploadTicket{}, fmt.Errorf("%w: content type is required", ErrMediaInvalidInput)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return UploadTicket{}, fmt.Errorf("%w: product %s", ErrCatalogNotFound, productID)
		}
		return UploadTicket{}, err
	}

	object, err := storage.BuildObjectPath(storage.PurposeProductImage, storage.PathParams{
		ProductID: productID,
		FileName:  cmd.FileName,
	})
	if err != nil {
		return UploadTicket{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, object, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              "PUT",
			ContentType:         contentType,
			ContentMD5:          strings.TrimSpace(cmd.ContentMD5),
			AllowedContentTypes: productImageContentTypes,
			MaxSize:             productImageMaxBytes,
			ExpiresIn:           productImageURLExpiry,
		},
	})
	if err != nil {
		return UploadTicket{}, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	return UploadTicket{
		URL:        result.URL,
		Method:     result.Method,
		Headers:    result.Headers,
		Bucket:     s.bucket,
		ObjectPath: object,
		ExpiresAt:  result.ExpiresAt,
	}, nil
}
