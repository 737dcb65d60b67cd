package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Key: in.Key}, nil
}

func snapshot() *domain.ResultadoArmazenado {
	return &domain.ResultadoArmazenado{
		ID:          "res-1",
		ProcessoID:  "p1",
		Resultado:   domain.ResultadoCalculo{DataBase: domain.NovaData(2024, 6, 1), DiasCumpridosHoje: 42},
		CalculadoEm: time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC),
	}
}

func TestObjectKey(t *testing.T) {
	a := &S3Archiver{bucket: "b", prefix: "prod"}

	assert.Equal(t, "prod/calculos/p1/2024/06/01/res-1.json", a.ObjectKey(snapshot()))

	a.prefix = ""
	assert.Equal(t, "calculos/p1/2024/06/01/res-1.json", a.ObjectKey(snapshot()))
}

func TestArquivar(t *testing.T) {
	up := &fakeUploader{}
	a := &S3Archiver{bucket: "arquivo", prefix: "prod", uploader: up}

	key, err := a.Arquivar(context.Background(), snapshot())

	require.NoError(t, err)
	assert.Equal(t, "prod/calculos/p1/2024/06/01/res-1.json", key)
	assert.Equal(t, "arquivo", aws.ToString(up.input.Bucket))
	assert.Equal(t, "application/json", aws.ToString(up.input.ContentType))
	assert.Contains(t, string(up.body), `"diasCumpridosHoje":42`)
}

func TestArquivar_UploadFailure(t *testing.T) {
	a := &S3Archiver{bucket: "arquivo", uploader: &fakeUploader{err: errors.New("access denied")}}

	_, err := a.Arquivar(context.Background(), snapshot())

	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext), "expected ErrExternalService, got %v", err)
	assert.Equal(t, "s3/arquivo", ext.Service)
}

func TestNewS3Archiver_RequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), "", "x")
	assert.Error(t, err)
}
