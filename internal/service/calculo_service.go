// Package service orchestrates the sentence engine with persistence,
// caching, event publishing and archiving.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/pena"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/port"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/calculo")

// CalculoService runs sentence calculations, ad hoc or for recorded cases.
type CalculoService struct {
	store        port.ProcessoStore
	cache        port.Cache[*domain.ResultadoCalculo]
	publisher    port.EventPublisher
	archiver     port.ResultadoArchiver
	metrics      *observability.Metrics
	logger       *zap.Logger
	concorrencia int
	agora        func() time.Time
}

// NewCalculoService creates the calculation service. publisher and archiver
// may be nil, in which case events and archiving are skipped.
func NewCalculoService(
	store port.ProcessoStore,
	cache port.Cache[*domain.ResultadoCalculo],
	publisher port.EventPublisher,
	archiver port.ResultadoArchiver,
	metrics *observability.Metrics,
	logger *zap.Logger,
	concorrencia int,
) *CalculoService {
	if concorrencia <= 0 {
		concorrencia = 4
	}
	return &CalculoService{
		store:        store,
		cache:        cache,
		publisher:    publisher,
		archiver:     archiver,
		metrics:      metrics,
		logger:       logger,
		concorrencia: concorrencia,
		agora:        time.Now,
	}
}

// WithClock replaces the wall clock used to resolve "today".
func (s *CalculoService) WithClock(agora func() time.Time) *CalculoService {
	s.agora = agora
	return s
}

// Hoje returns today's date in the court's time zone.
func (s *CalculoService) Hoje() domain.Data {
	return domain.HojeNoTribunal(s.agora())
}

// ============================================================
// Ad-hoc calculation: POST /v1/calculos
// ============================================================

// Calcular runs the engine on a self-contained payload. Identical requests
// are served from cache.
func (s *CalculoService) Calcular(ctx context.Context, req *domain.CalculoRequest) (*domain.ResultadoCalculo, error) {
	ctx, span := tracer.Start(ctx, "CalculoService.Calcular")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordCalculoDuration("calcular", time.Since(start))
	}()

	dataBase := s.Hoje()
	if req.DataBase != nil && !req.DataBase.IsZero() {
		dataBase = *req.DataBase
	}
	span.SetAttributes(attribute.String("data_base", dataBase.String()))

	key, err := chaveCache(req, dataBase)
	if err != nil {
		return nil, fmt.Errorf("cache key: %w", err)
	}
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("calculo")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("calculo")

	res, err := s.executar(ctx, req.Sentenca, req.Episodios, req.Remicoes, dataBase)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, res)
	return res, nil
}

// Unificar suggests a total length and fraction for a list of crimes.
func (s *CalculoService) Unificar(ctx context.Context, req *domain.UnificacaoRequest) (*domain.UnificacaoResponse, error) {
	_, span := tracer.Start(ctx, "CalculoService.Unificar")
	defer span.End()

	return pena.Unificar(req.Crimes)
}

// ============================================================
// Recorded case: GET /v1/processos/{id}/calculo
// ============================================================

// CalcularProcesso loads a case owned by ownerID, computes it as of dataBase
// (today when nil), stores the snapshot and archives it.
func (s *CalculoService) CalcularProcesso(ctx context.Context, ownerID, processoID string, dataBase *domain.Data) (*domain.ResultadoArmazenado, error) {
	ctx, span := tracer.Start(ctx, "CalculoService.CalcularProcesso")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	start := time.Now()
	defer func() {
		s.metrics.RecordCalculoDuration("calcular_processo", time.Since(start))
	}()

	asOf := s.Hoje()
	if dataBase != nil && !dataBase.IsZero() {
		asOf = *dataBase
	}

	var (
		processo  *domain.Processo
		episodios []domain.EpisodioCustodia
		remicoes  []domain.Remissao
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.store.ObterProcesso(gCtx, ownerID, processoID)
		if err != nil {
			return fmt.Errorf("processo fetch: %w", err)
		}
		processo = p
		return nil
	})

	g.Go(func() error {
		e, err := s.store.ListarEpisodios(gCtx, processoID)
		if err != nil {
			s.metrics.IncrExternalError("store")
			return fmt.Errorf("episodios fetch: %w", err)
		}
		episodios = e
		return nil
	})

	g.Go(func() error {
		r, err := s.store.ListarRemicoes(gCtx, processoID)
		if err != nil {
			s.metrics.IncrExternalError("store")
			return fmt.Errorf("remicoes fetch: %w", err)
		}
		remicoes = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := s.executar(ctx, processo.Sentenca, episodios, remicoes, asOf)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.SalvarResultado(ctx, processoID, res)
	if err != nil {
		s.metrics.IncrExternalError("store")
		return nil, fmt.Errorf("salvar resultado: %w", err)
	}
	s.arquivar(ctx, stored)

	s.logger.Info("processo calculated",
		zap.String("processo_id", processoID),
		zap.String("owner_id", ownerID),
		zap.String("data_base", asOf.String()),
		zap.Duration("duration", time.Since(start)),
	)
	return stored, nil
}

// executar runs the engine and counts the outcome.
func (s *CalculoService) executar(
	ctx context.Context,
	sentenca domain.DadosSentenca,
	episodios []domain.EpisodioCustodia,
	remicoes []domain.Remissao,
	dataBase domain.Data,
) (*domain.ResultadoCalculo, error) {
	_, span := tracer.Start(ctx, "pena.Calcular")
	defer span.End()
	span.SetAttributes(
		attribute.Int("episodios", len(episodios)),
		attribute.Int("remicoes", len(remicoes)),
	)

	res, err := pena.Calcular(sentenca, episodios, remicoes, dataBase)

	var (
		invalid      *domain.ErrInvalidInput
		unresolvable *domain.ErrUnresolvableTermination
	)
	switch {
	case err == nil:
		s.metrics.IncrCalculo(observability.OutcomeSuccess)
	case errors.As(err, &invalid):
		s.metrics.IncrCalculo(observability.OutcomeInvalidInput)
	case errors.As(err, &unresolvable):
		s.metrics.IncrCalculo(observability.OutcomeUnresolvable)
	default:
		s.metrics.IncrCalculo(observability.OutcomeError)
	}
	return res, err
}

// arquivar uploads the snapshot when an archiver is configured. The stored
// row is the record of truth, so upload failures are only logged.
func (s *CalculoService) arquivar(ctx context.Context, stored *domain.ResultadoArmazenado) {
	if s.archiver == nil {
		return
	}
	key, err := s.archiver.Arquivar(ctx, stored)
	if err != nil {
		s.metrics.IncrExternalError("s3")
		s.logger.Error("failed to archive resultado",
			zap.String("processo_id", stored.ProcessoID),
			zap.String("resultado_id", stored.ID),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("resultado archived", zap.String("key", key))
}

// chaveCache hashes the canonical JSON of the request with its resolved date.
func chaveCache(req *domain.CalculoRequest, dataBase domain.Data) (string, error) {
	canon := *req
	canon.DataBase = &dataBase
	b, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "calculo:" + hex.EncodeToString(sum[:]), nil
}
