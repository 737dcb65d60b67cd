package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/pena"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var processoTracer = otel.Tracer("service/processo")

// ProcessoService records cases and their custody, remission and event history.
type ProcessoService struct {
	store  port.ProcessoStore
	logger *zap.Logger
}

func NewProcessoService(store port.ProcessoStore, logger *zap.Logger) *ProcessoService {
	return &ProcessoService{store: store, logger: logger}
}

// ============================================================
// Processos: POST/GET /v1/processos
// ============================================================

// CriarProcesso validates the whole request before writing anything, then
// stores the case and its history in a single store call.
func (s *ProcessoService) CriarProcesso(ctx context.Context, ownerID string, req *domain.CriarProcessoRequest) (*domain.ProcessoDetalhado, error) {
	ctx, span := processoTracer.Start(ctx, "ProcessoService.CriarProcesso")
	defer span.End()

	if ownerID == "" {
		return nil, &domain.ErrUnauthorized{Message: "owner required"}
	}
	if err := validarCriacao(req); err != nil {
		return nil, err
	}

	in := &domain.ProcessoDetalhado{
		Processo: domain.Processo{
			ID:       uuid.New().String(),
			OwnerID:  ownerID,
			Sentenca: req.Sentenca,
			Ativo:    true,
			CriadoEm: time.Now().UTC(),
		},
		Episodios: make([]domain.EpisodioCustodia, len(req.Episodios)),
		Remicoes:  make([]domain.Remissao, len(req.Remicoes)),
		Eventos:   make([]domain.EventoProcessual, len(req.Eventos)),
	}
	for i, e := range req.Episodios {
		e.ID = uuid.New().String()
		in.Episodios[i] = e
	}
	for i, r := range req.Remicoes {
		r.ID = uuid.New().String()
		in.Remicoes[i] = r
	}
	for i, e := range req.Eventos {
		e.ID = uuid.New().String()
		in.Eventos[i] = e
	}
	span.SetAttributes(attribute.String("processo.id", in.ID))

	out, err := s.store.CriarProcesso(ctx, in)
	if err != nil {
		s.logger.Warn("processo not created",
			zap.String("processo_id", in.ID),
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("criar processo: %w", err)
	}

	s.logger.Info("processo created",
		zap.String("processo_id", out.ID),
		zap.String("owner_id", ownerID),
		zap.Int("episodios", len(out.Episodios)),
		zap.Int("remicoes", len(out.Remicoes)),
	)
	return out, nil
}

// ObterProcesso returns the case with its full history. An empty ownerID
// skips the ownership filter.
func (s *ProcessoService) ObterProcesso(ctx context.Context, ownerID, processoID string) (*domain.ProcessoDetalhado, error) {
	ctx, span := processoTracer.Start(ctx, "ProcessoService.ObterProcesso")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	p, err := s.store.ObterProcesso(ctx, ownerID, processoID)
	if err != nil {
		return nil, err
	}

	out := &domain.ProcessoDetalhado{Processo: *p}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Episodios, err = s.store.ListarEpisodios(gCtx, processoID)
		return err
	})
	g.Go(func() (err error) {
		out.Remicoes, err = s.store.ListarRemicoes(gCtx, processoID)
		return err
	})
	g.Go(func() (err error) {
		out.Eventos, err = s.store.ListarEventos(gCtx, processoID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if out.Episodios == nil {
		out.Episodios = []domain.EpisodioCustodia{}
	}
	if out.Remicoes == nil {
		out.Remicoes = []domain.Remissao{}
	}
	if out.Eventos == nil {
		out.Eventos = []domain.EventoProcessual{}
	}
	return out, nil
}

func (s *ProcessoService) ListarProcessos(ctx context.Context, ownerID string) ([]domain.Processo, error) {
	ctx, span := processoTracer.Start(ctx, "ProcessoService.ListarProcessos")
	defer span.End()

	ps, err := s.store.ListarProcessos(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []domain.Processo{}
	}
	return ps, nil
}

// ============================================================
// History: POST /v1/processos/{processoId}/...
// ============================================================

func (s *ProcessoService) RegistrarEpisodio(ctx context.Context, ownerID, processoID string, e *domain.EpisodioCustodia) (*domain.EpisodioCustodia, error) {
	ctx, span := processoTracer.Start(ctx, "ProcessoService.RegistrarEpisodio")
	defer span.End()

	if err := pena.ValidarEpisodio(*e); err != nil {
		return nil, err
	}
	if _, err := s.store.ObterProcesso(ctx, ownerID, processoID); err != nil {
		return nil, err
	}

	novo := *e
	novo.ID = uuid.New().String()
	saved, err := s.store.CriarEpisodio(ctx, processoID, &novo)
	if err != nil {
		return nil, fmt.Errorf("criar episodio: %w", err)
	}

	s.logger.Info("episodio registered",
		zap.String("processo_id", processoID),
		zap.String("episodio_id", saved.ID),
		zap.Bool("aberto", saved.Aberto()),
	)
	return saved, nil
}

func (s *ProcessoService) RegistrarRemicao(ctx context.Context, ownerID, processoID string, r *domain.Remissao) (*domain.Remissao, error) {
	ctx, span := processoTracer.Start(ctx, "ProcessoService.RegistrarRemicao")
	defer span.End()

	if err := pena.ValidarRemissao(*r); err != nil {
		return nil, err
	}
	if _, err := s.store.ObterProcesso(ctx, ownerID, processoID); err != nil {
		return nil, err
	}

	nova := *r
	nova.ID = uuid.New().String()
	saved, err := s.store.CriarRemicao(ctx, processoID, &nova)
	if err != nil {
		return nil, fmt.Errorf("criar remicao: %w", err)
	}

	s.logger.Info("remicao registered",
		zap.String("processo_id", processoID),
		zap.String("remicao_id", saved.ID),
		zap.Int("dias", saved.Dias),
	)
	return saved, nil
}

func (s *ProcessoService) RegistrarEvento(ctx context.Context, ownerID, processoID string, e *domain.EventoProcessual) (*domain.EventoProcessual, error) {
	ctx, span := processoTracer.Start(ctx, "ProcessoService.RegistrarEvento")
	defer span.End()

	if err := pena.ValidarEvento(*e); err != nil {
		return nil, err
	}
	if _, err := s.store.ObterProcesso(ctx, ownerID, processoID); err != nil {
		return nil, err
	}

	novo := *e
	novo.ID = uuid.New().String()
	saved, err := s.store.CriarEvento(ctx, processoID, &novo)
	if err != nil {
		return nil, fmt.Errorf("criar evento: %w", err)
	}
	return saved, nil
}

// validarCriacao checks the sentence and every history entry, prefixing the
// offending field with its list position.
func validarCriacao(req *domain.CriarProcessoRequest) error {
	if err := pena.ValidarSentenca(req.Sentenca); err != nil {
		return err
	}
	for i, e := range req.Episodios {
		if err := pena.ValidarEpisodio(e); err != nil {
			return prefixar(err, fmt.Sprintf("episodios[%d].", i))
		}
	}
	for i, r := range req.Remicoes {
		if err := pena.ValidarRemissao(r); err != nil {
			return prefixar(err, fmt.Sprintf("remicoes[%d].", i))
		}
	}
	for i, e := range req.Eventos {
		if err := pena.ValidarEvento(e); err != nil {
			return prefixar(err, fmt.Sprintf("eventos[%d].", i))
		}
	}
	return nil
}

func prefixar(err error, prefix string) error {
	var inv *domain.ErrInvalidInput
	if errors.As(err, &inv) {
		return &domain.ErrInvalidInput{Field: prefix + inv.Field, Message: inv.Message}
	}
	return err
}
