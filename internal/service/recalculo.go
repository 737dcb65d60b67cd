package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	recalculoAlterado   = "changed"
	recalculoInalterado = "unchanged"
	recalculoFalhou     = "failed"
)

// RecalcularAtivos recomputes every active case as of dataBase (today when
// nil). Cases whose dates moved produce a calculo.recalculado event. A failure
// on one case is reported and does not stop the run.
func (s *CalculoService) RecalcularAtivos(ctx context.Context, dataBase *domain.Data) (*domain.RelatorioRecalculo, error) {
	ctx, span := tracer.Start(ctx, "CalculoService.RecalcularAtivos")
	defer span.End()

	start := time.Now()
	asOf := s.Hoje()
	if dataBase != nil && !dataBase.IsZero() {
		asOf = *dataBase
	}

	processos, err := s.store.ListarProcessosAtivos(ctx)
	if err != nil {
		s.metrics.IncrExternalError("store")
		return nil, fmt.Errorf("listar processos ativos: %w", err)
	}
	span.SetAttributes(attribute.Int("processos", len(processos)))

	rel := &domain.RelatorioRecalculo{
		DataBase: asOf,
		Total:    len(processos),
		Falhas:   []domain.FalhaRecalculo{},
	}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concorrencia)

	for i := range processos {
		p := processos[i]
		g.Go(func() error {
			alterado, err := s.recalcular(gCtx, &p, asOf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.metrics.IncrRecalculo(recalculoFalhou)
				rel.Falhas = append(rel.Falhas, domain.FalhaRecalculo{ProcessoID: p.ID, Erro: err.Error()})
				s.logger.Warn("recalculo failed",
					zap.String("processo_id", p.ID),
					zap.Error(err),
				)
				return nil
			}
			rel.Calculados++
			if alterado {
				rel.Alterados++
				s.metrics.IncrRecalculo(recalculoAlterado)
			} else {
				s.metrics.IncrRecalculo(recalculoInalterado)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &domain.ErrTimeout{Operation: "recalcular_ativos"}
	}

	sort.Slice(rel.Falhas, func(i, j int) bool {
		return rel.Falhas[i].ProcessoID < rel.Falhas[j].ProcessoID
	})
	rel.DuracaoMs = time.Since(start).Milliseconds()

	s.logger.Info("recalculo finished",
		zap.String("data_base", asOf.String()),
		zap.Int("total", rel.Total),
		zap.Int("calculados", rel.Calculados),
		zap.Int("alterados", rel.Alterados),
		zap.Int("falhas", len(rel.Falhas)),
		zap.Int64("duration_ms", rel.DuracaoMs),
	)
	return rel, nil
}

// recalcular computes one case, stores the snapshot and publishes an event
// when the dates differ from the previous snapshot.
func (s *CalculoService) recalcular(ctx context.Context, p *domain.Processo, asOf domain.Data) (bool, error) {
	var (
		episodios []domain.EpisodioCustodia
		remicoes  []domain.Remissao
		anterior  *domain.ResultadoArmazenado
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		episodios, err = s.store.ListarEpisodios(gCtx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		remicoes, err = s.store.ListarRemicoes(gCtx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		anterior, err = s.store.UltimoResultado(gCtx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncrExternalError("store")
		return false, err
	}

	res, err := s.executar(ctx, p.Sentenca, episodios, remicoes, asOf)
	if err != nil {
		return false, err
	}

	stored, err := s.store.SalvarResultado(ctx, p.ID, res)
	if err != nil {
		s.metrics.IncrExternalError("store")
		return false, fmt.Errorf("salvar resultado: %w", err)
	}
	s.arquivar(ctx, stored)

	var prev *domain.ResultadoCalculo
	if anterior != nil {
		prev = &anterior.Resultado
	}
	if !datasAlteradas(prev, res) {
		return false, nil
	}

	s.publicar(ctx, &domain.EventoRecalculo{
		ID:             uuid.New().String(),
		Tipo:           domain.TipoEventoRecalculado,
		ProcessoID:     p.ID,
		OwnerID:        p.OwnerID,
		NumeroProcesso: p.Sentenca.NumeroProcesso,
		Anterior:       prev,
		Atual:          *res,
		OcorridoEm:     s.agora().UTC(),
	})
	return true, nil
}

// publicar emits the event when a publisher is configured. The snapshot is
// already stored, so publish failures are logged and counted only.
func (s *CalculoService) publicar(ctx context.Context, ev *domain.EventoRecalculo) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publicar(ctx, ev); err != nil {
		s.metrics.IncrEvento("failed")
		s.metrics.IncrExternalError("kafka")
		s.logger.Error("failed to publish recalculo event",
			zap.String("processo_id", ev.ProcessoID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrEvento("published")
}

// datasAlteradas reports whether any projected date differs. A case with no
// previous snapshot counts as changed.
func datasAlteradas(anterior, atual *domain.ResultadoCalculo) bool {
	if anterior == nil {
		return true
	}
	return !mesmaData(anterior.DataProgressao, atual.DataProgressao) ||
		!mesmaData(anterior.DataLivramento, atual.DataLivramento) ||
		!anterior.DataTermino.Equal(atual.DataTermino)
}

func mesmaData(a, b *domain.Data) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
