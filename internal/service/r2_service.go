package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	cfg "github.com/maheshrc27/travelpost-bot/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrHostingDisabled = errors.New("image hosting is not configured")

// ImageHost stores image bytes somewhere durable and returns a public URL.
type ImageHost interface {
	Upload(ctx context.Context, image []byte) (string, error)
}

type R2Service struct {
	config cfg.Config
	client *s3.Client
}

func NewR2Service(ctx context.Context, c cfg.Config) (*R2Service, error) {
	r := &R2Service{config: c}
	if !c.R2.Enabled() {
		return r, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error loading R2 config: %w", err)
	}

	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})
	return r, nil
}

// Upload puts the image into the bucket under a random key and returns its public URL.
func (r *R2Service) Upload(ctx context.Context, image []byte) (string, error) {
	if r.client == nil {
		return "", ErrHostingDisabled
	}

	kind, err := filetype.Match(image)
	if err != nil || kind == types.Unknown || !filetype.IsImage(image) {
		return "", fmt.Errorf("unsupported image type")
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	key := fmt.Sprintf("posts/%s.%s", id, kind.Extension)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String(kind.MIME.Value),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return fmt.Sprintf("%s/%s", r.config.R2.PublicURL, key), nil
}
