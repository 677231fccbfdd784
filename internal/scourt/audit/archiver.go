// Package audit archives failure evidence to S3-compatible storage:
// challenge images the portal rejected and portal values the normalizer
// could not map. Archiving is best effort and never fails the sync that
// produced the evidence.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	sc "github.com/dmitrijs2005/courtsync/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/courtsync/internal/logging"
)

type Archiver struct {
	client *s3.Client
	bucket string
	logger logging.Logger
}

// New builds an archiver from the server config. When no bucket is
// configured it returns nil; the engine treats a nil archiver as disabled.
func New(ctx context.Context, c *sc.Config, logger logging.Logger) (*Archiver, error) {
	if c.S3Bucket == "" {
		return nil, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &Archiver{client: client, bucket: c.S3Bucket, logger: logger}, nil
}

func challengeKey() string {
	return fmt.Sprintf("captcha/%s/%s.png", time.Now().Format("2006-01-02"), uuid.New())
}

func missesKey(caseID string) string {
	return fmt.Sprintf("misses/%s/%s/%s.json", time.Now().Format("2006-01-02"), caseID, uuid.New())
}

func (a *Archiver) put(ctx context.Context, key, contentType string, body []byte) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		a.logger.Warn(ctx, "evidence archive failed", "key", key, "error", err)
		return
	}
	a.logger.Debug(ctx, "evidence archived", "key", key)
}

// ArchiveChallenge stores a challenge image the portal rejected, for later
// review of the vision model's misses.
func (a *Archiver) ArchiveChallenge(ctx context.Context, image []byte) {
	a.put(ctx, challengeKey(), "image/png", image)
}

// ArchiveMisses stores raw portal values that had no canonical mapping.
func (a *Archiver) ArchiveMisses(ctx context.Context, caseID string, rawValues []string) {
	body, err := json.Marshal(map[string]any{
		"case_id": caseID,
		"values":  rawValues,
		"seen_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		a.logger.Warn(ctx, "evidence encode failed", "case", caseID, "error", err)
		return
	}
	a.put(ctx, missesKey(caseID), "application/json", body)
}
