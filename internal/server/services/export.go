package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	sc "github.com/dmitrijs2005/failseed/internal/server/config"
	"github.com/dmitrijs2005/failseed/internal/server/models"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const exportLinkValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Export describes an uploaded archive of an owner's growth entries.
type Export struct {
	Key       string
	URL       string
	Count     int
	ExpiresAt time.Time
}

// ExportService uploads an owner's completed entries to an S3-compatible
// bucket and hands back a short-lived download link.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewExportService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		now:         time.Now,
	}
}

// Enabled reports whether a bucket is configured.
func (s *ExportService) Enabled() bool {
	return s.config.S3Bucket != ""
}

func (s *ExportService) storageKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("exports/%d/%02d/%02d/%v.json", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type exportedEntry struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Growth     string           `json:"growth"`
	Hint       *string          `json:"hint"`
	HintStatus string           `json:"hintStatus"`
	Category   *string          `json:"category"`
	TurnCount  int              `json:"turnCount"`
	History    []models.Message `json:"conversationHistory"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type exportDocument struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Entries    []exportedEntry `json:"entries"`
}

// Export writes the owner's completed entries as one JSON object and
// presigns a GET for it.
func (s *ExportService) Export(ctx context.Context, owner string) (*Export, error) {
	if !s.Enabled() {
		return nil, common.ErrExportUnavailable
	}

	list, err := s.repomanager.Entries(s.db).ListCompleted(ctx, owner)
	if err != nil {
		return nil, err
	}

	doc := exportDocument{ExportedAt: s.now().UTC(), Entries: make([]exportedEntry, 0, len(list))}
	for _, e := range list {
		item := exportedEntry{
			ID:         e.ID,
			Text:       e.Text,
			Hint:       e.Hint,
			HintStatus: string(e.HintStatus),
			Category:   e.Category,
			TurnCount:  e.TurnCount,
			History:    e.History,
			CreatedAt:  e.CreatedAt,
		}
		if e.Growth != nil {
			item.Growth = *e.Growth
		}
		doc.Entries = append(doc.Entries, item)
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := s.storageKey()

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	// Presigned GET
	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(exportLinkValidity))
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	return &Export{Key: key, URL: req.URL, Count: len(list), ExpiresAt: doc.ExportedAt.Add(exportLinkValidity)}, nil
}
