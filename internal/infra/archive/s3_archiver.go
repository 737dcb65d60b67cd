// Package archive keeps an immutable JSON copy of every stored calculation
// in object storage (S3).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("archive")

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver writes snapshots to S3 paths like:
//
//	s3://<bucket>/<prefix>/calculos/<processoID>/YYYY/MM/DD/<resultadoID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from the
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET etc.).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// ObjectKey returns where a snapshot is stored.
func (s *S3Archiver) ObjectKey(r *domain.ResultadoArmazenado) string {
	ts := r.CalculadoEm.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	year, month, day := ts.Date()
	return path.Join(s.prefix, "calculos", r.ProcessoID,
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", r.ID),
	)
}

// Arquivar uploads the snapshot and returns its object key.
func (s *S3Archiver) Arquivar(ctx context.Context, r *domain.ResultadoArmazenado) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil resultado")
	}
	ctx, span := tracer.Start(ctx, "S3.Arquivar")
	defer span.End()

	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal resultado: %w", err)
	}

	key := s.ObjectKey(r)
	span.SetAttributes(attribute.String("s3.key", key), attribute.String("processo.id", r.ProcessoID))

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "s3/" + s.bucket, Err: fmt.Errorf("upload %s: %w", key, err)}
	}
	return key, nil
}
