package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Row types (snake_case columns of the PostgREST tables)
// ============================================================

type processoRow struct {
	ID                  string         `json:"id"`
	OwnerID             string         `json:"owner_id"`
	NumeroProcesso      string         `json:"numero_processo"`
	Vara                string         `json:"vara"`
	Juiz                string         `json:"juiz"`
	TotalDias           int            `json:"total_dias"`
	RegimeInicial       domain.Regime  `json:"regime_inicial"`
	FracaoProgressao    float64        `json:"fracao_progressao"`
	FracaoLivramento    *float64       `json:"fracao_livramento"`
	DataInicioTeorica   *domain.Data   `json:"data_inicio_teorica"`
	DataTransitoJulgado *domain.Data   `json:"data_transito_julgado"`
	Crimes              []domain.Crime `json:"crimes"`
	Observacoes         string         `json:"observacoes"`
	Ativo               bool           `json:"ativo"`
	CriadoEm            time.Time      `json:"criado_em"`
}

func processoToRow(p *domain.Processo) processoRow {
	s := p.Sentenca
	return processoRow{
		ID:                  p.ID,
		OwnerID:             p.OwnerID,
		NumeroProcesso:      s.NumeroProcesso,
		Vara:                s.Vara,
		Juiz:                s.Juiz,
		TotalDias:           s.TotalDias,
		RegimeInicial:       s.RegimeInicial,
		FracaoProgressao:    s.FracaoProgressao,
		FracaoLivramento:    s.FracaoLivramento,
		DataInicioTeorica:   s.DataInicioTeorica,
		DataTransitoJulgado: s.DataTransitoJulgado,
		Crimes:              s.Crimes,
		Observacoes:         s.Observacoes,
		Ativo:               p.Ativo,
		CriadoEm:            p.CriadoEm,
	}
}

func (r processoRow) toDomain() domain.Processo {
	return domain.Processo{
		ID:      r.ID,
		OwnerID: r.OwnerID,
		Sentenca: domain.DadosSentenca{
			Crimes:              r.Crimes,
			TotalDias:           r.TotalDias,
			RegimeInicial:       r.RegimeInicial,
			FracaoProgressao:    r.FracaoProgressao,
			FracaoLivramento:    r.FracaoLivramento,
			DataInicioTeorica:   r.DataInicioTeorica,
			NumeroProcesso:      r.NumeroProcesso,
			Vara:                r.Vara,
			Juiz:                r.Juiz,
			DataTransitoJulgado: r.DataTransitoJulgado,
			Observacoes:         r.Observacoes,
		},
		Ativo:    r.Ativo,
		CriadoEm: r.CriadoEm,
	}
}

type episodioRow struct {
	ID          string              `json:"id"`
	ProcessoID  string              `json:"processo_id"`
	Tipo        domain.TipoEpisodio `json:"tipo"`
	Inicio      domain.Data         `json:"inicio"`
	Fim         *domain.Data        `json:"fim"`
	Computavel  bool                `json:"computavel"`
	Observacoes string              `json:"observacoes"`
}

func (r episodioRow) toDomain() domain.EpisodioCustodia {
	return domain.EpisodioCustodia{
		ID:          r.ID,
		Tipo:        r.Tipo,
		Inicio:      r.Inicio,
		Fim:         r.Fim,
		Computavel:  r.Computavel,
		Observacoes: r.Observacoes,
	}
}

type remicaoRow struct {
	ID          string               `json:"id"`
	ProcessoID  string               `json:"processo_id"`
	DataCredito domain.Data          `json:"data_credito"`
	Dias        int                  `json:"dias"`
	Motivo      domain.MotivoRemicao `json:"motivo"`
	Observacoes string               `json:"observacoes"`
}

func (r remicaoRow) toDomain() domain.Remissao {
	return domain.Remissao{
		ID:          r.ID,
		DataCredito: r.DataCredito,
		Dias:        r.Dias,
		Motivo:      r.Motivo,
		Observacoes: r.Observacoes,
	}
}

type eventoRow struct {
	ID          string                      `json:"id"`
	ProcessoID  string                      `json:"processo_id"`
	Tipo        domain.TipoEventoProcessual `json:"tipo"`
	Data        domain.Data                 `json:"data"`
	Observacoes string                      `json:"observacoes"`
}

func (r eventoRow) toDomain() domain.EventoProcessual {
	return domain.EventoProcessual{
		ID:          r.ID,
		Tipo:        r.Tipo,
		Data:        r.Data,
		Observacoes: r.Observacoes,
	}
}

type resultadoRow struct {
	ID          string                  `json:"id"`
	ProcessoID  string                  `json:"processo_id"`
	DataBase    domain.Data             `json:"data_base"`
	Resultado   domain.ResultadoCalculo `json:"resultado"`
	CalculadoEm time.Time               `json:"calculado_em"`
}

// ============================================================
// Processos
// ============================================================

// CriarProcesso has no transaction to lean on, so the case is inserted
// inactive, its history is added, and only then is it switched to active.
// When any step fails the case row is deleted, and the cascade removes the
// history already written. If that delete fails too, the leftover row stays
// inactive and is never picked up by ListarProcessosAtivos.
func (c *Client) CriarProcesso(ctx context.Context, d *domain.ProcessoDetalhado) (*domain.ProcessoDetalhado, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CriarProcesso")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", d.ID), attribute.String("owner.id", d.OwnerID))

	pendente := d.Processo
	pendente.Ativo = false

	var row processoRow
	err := c.guard.Do(ctx, "supabase.criar_processo", func() error {
		return c.insertRow(ctx, "processos", processoToRow(&pendente), &row)
	})
	if err != nil {
		return nil, wrap("supabase/processos", err)
	}

	out, err := c.criarHistorico(ctx, row.toDomain(), d)
	if err == nil && d.Ativo {
		err = c.guard.Do(ctx, "supabase.ativar_processo", func() error {
			return c.doPatch(ctx, "processos?id=eq."+url.QueryEscape(d.ID), map[string]any{"ativo": true})
		})
		if err != nil {
			err = wrap("supabase/processos", err)
		} else {
			out.Ativo = true
		}
	}
	if err != nil {
		c.descartarProcesso(ctx, d.ID)
		return nil, err
	}
	return out, nil
}

func (c *Client) criarHistorico(ctx context.Context, p domain.Processo, d *domain.ProcessoDetalhado) (*domain.ProcessoDetalhado, error) {
	out := &domain.ProcessoDetalhado{
		Processo:  p,
		Episodios: make([]domain.EpisodioCustodia, 0, len(d.Episodios)),
		Remicoes:  make([]domain.Remissao, 0, len(d.Remicoes)),
		Eventos:   make([]domain.EventoProcessual, 0, len(d.Eventos)),
	}
	for i := range d.Episodios {
		e, err := c.CriarEpisodio(ctx, p.ID, &d.Episodios[i])
		if err != nil {
			return nil, err
		}
		out.Episodios = append(out.Episodios, *e)
	}
	for i := range d.Remicoes {
		r, err := c.CriarRemicao(ctx, p.ID, &d.Remicoes[i])
		if err != nil {
			return nil, err
		}
		out.Remicoes = append(out.Remicoes, *r)
	}
	for i := range d.Eventos {
		e, err := c.CriarEvento(ctx, p.ID, &d.Eventos[i])
		if err != nil {
			return nil, err
		}
		out.Eventos = append(out.Eventos, *e)
	}
	return out, nil
}

// descartarProcesso removes a partially written case. It runs even when ctx
// is already cancelled.
func (c *Client) descartarProcesso(ctx context.Context, processoID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := c.guard.Do(ctx, "supabase.descartar_processo", func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, "processos?id=eq."+url.QueryEscape(processoID))
		return err
	})
	if err != nil {
		c.logger.Error("supabase: failed to discard partial processo",
			zap.String("processo_id", processoID),
			zap.Error(err),
		)
		return
	}
	c.logger.Warn("supabase: partial processo discarded", zap.String("processo_id", processoID))
}

// ObterProcesso loads one case. An empty ownerID skips the ownership filter.
func (c *Client) ObterProcesso(ctx context.Context, ownerID, processoID string) (*domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ObterProcesso")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	path := fmt.Sprintf("processos?id=eq.%s&limit=1", url.QueryEscape(processoID))
	if ownerID != "" {
		path += "&owner_id=eq." + url.QueryEscape(ownerID)
	}

	var rows []processoRow
	err := c.guard.Do(ctx, "supabase.obter_processo", func() error {
		return c.getRows(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrap("supabase/processos", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "processo", ID: processoID}
	}

	out := rows[0].toDomain()
	return &out, nil
}

// ListarProcessos lists the owner's cases, or every case when ownerID is empty.
func (c *Client) ListarProcessos(ctx context.Context, ownerID string) ([]domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListarProcessos")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	path := "processos?order=criado_em.desc"
	if ownerID != "" {
		path += "&owner_id=eq." + url.QueryEscape(ownerID)
	}
	return c.listarProcessos(ctx, path)
}

func (c *Client) ListarProcessosAtivos(ctx context.Context) ([]domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListarProcessosAtivos")
	defer span.End()

	return c.listarProcessos(ctx, "processos?ativo=eq.true&order=criado_em.asc")
}

func (c *Client) listarProcessos(ctx context.Context, path string) ([]domain.Processo, error) {
	var rows []processoRow
	err := c.guard.Do(ctx, "supabase.listar_processos", func() error {
		rows = nil
		return c.getRows(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrap("supabase/processos", err)
	}

	out := make([]domain.Processo, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ============================================================
// Episodios de custodia
// ============================================================

func (c *Client) CriarEpisodio(ctx context.Context, processoID string, e *domain.EpisodioCustodia) (*domain.EpisodioCustodia, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CriarEpisodio")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	in := episodioRow{
		ID:          e.ID,
		ProcessoID:  processoID,
		Tipo:        e.Tipo,
		Inicio:      e.Inicio,
		Fim:         e.Fim,
		Computavel:  e.Computavel,
		Observacoes: e.Observacoes,
	}
	var row episodioRow
	err := c.guard.Do(ctx, "supabase.criar_episodio", func() error {
		return c.insertRow(ctx, "episodios_custodia", in, &row)
	})
	if err != nil {
		return nil, wrap("supabase/episodios_custodia", err)
	}

	out := row.toDomain()
	return &out, nil
}

func (c *Client) ListarEpisodios(ctx context.Context, processoID string) ([]domain.EpisodioCustodia, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListarEpisodios")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	path := fmt.Sprintf("episodios_custodia?processo_id=eq.%s&order=inicio.asc", url.QueryEscape(processoID))

	var rows []episodioRow
	err := c.guard.Do(ctx, "supabase.listar_episodios", func() error {
		rows = nil
		return c.getRows(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrap("supabase/episodios_custodia", err)
	}

	out := make([]domain.EpisodioCustodia, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ============================================================
// Remicoes
// ============================================================

func (c *Client) CriarRemicao(ctx context.Context, processoID string, r *domain.Remissao) (*domain.Remissao, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CriarRemicao")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	in := remicaoRow{
		ID:          r.ID,
		ProcessoID:  processoID,
		DataCredito: r.DataCredito,
		Dias:        r.Dias,
		Motivo:      r.Motivo,
		Observacoes: r.Observacoes,
	}
	var row remicaoRow
	err := c.guard.Do(ctx, "supabase.criar_remicao", func() error {
		return c.insertRow(ctx, "remicoes", in, &row)
	})
	if err != nil {
		return nil, wrap("supabase/remicoes", err)
	}

	out := row.toDomain()
	return &out, nil
}

func (c *Client) ListarRemicoes(ctx context.Context, processoID string) ([]domain.Remissao, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListarRemicoes")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	path := fmt.Sprintf("remicoes?processo_id=eq.%s&order=data_credito.asc", url.QueryEscape(processoID))

	var rows []remicaoRow
	err := c.guard.Do(ctx, "supabase.listar_remicoes", func() error {
		rows = nil
		return c.getRows(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrap("supabase/remicoes", err)
	}

	out := make([]domain.Remissao, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ============================================================
// Eventos processuais
// ============================================================

func (c *Client) CriarEvento(ctx context.Context, processoID string, e *domain.EventoProcessual) (*domain.EventoProcessual, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CriarEvento")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	in := eventoRow{
		ID:          e.ID,
		ProcessoID:  processoID,
		Tipo:        e.Tipo,
		Data:        e.Data,
		Observacoes: e.Observacoes,
	}
	var row eventoRow
	err := c.guard.Do(ctx, "supabase.criar_evento", func() error {
		return c.insertRow(ctx, "eventos_processuais", in, &row)
	})
	if err != nil {
		return nil, wrap("supabase/eventos_processuais", err)
	}

	out := row.toDomain()
	return &out, nil
}

func (c *Client) ListarEventos(ctx context.Context, processoID string) ([]domain.EventoProcessual, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListarEventos")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	path := fmt.Sprintf("eventos_processuais?processo_id=eq.%s&order=data.asc", url.QueryEscape(processoID))

	var rows []eventoRow
	err := c.guard.Do(ctx, "supabase.listar_eventos", func() error {
		rows = nil
		return c.getRows(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrap("supabase/eventos_processuais", err)
	}

	out := make([]domain.EventoProcessual, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ============================================================
// Resultados
// ============================================================

func (c *Client) SalvarResultado(ctx context.Context, processoID string, r *domain.ResultadoCalculo) (*domain.ResultadoArmazenado, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SalvarResultado")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID), attribute.String("data_base", r.DataBase.String()))

	in := resultadoRow{
		ID:          uuid.New().String(),
		ProcessoID:  processoID,
		DataBase:    r.DataBase,
		Resultado:   *r,
		CalculadoEm: time.Now().UTC(),
	}
	var row resultadoRow
	err := c.guard.Do(ctx, "supabase.salvar_resultado", func() error {
		return c.insertRow(ctx, "resultados_calculo", in, &row)
	})
	if err != nil {
		return nil, wrap("supabase/resultados_calculo", err)
	}

	return &domain.ResultadoArmazenado{
		ID:          row.ID,
		ProcessoID:  row.ProcessoID,
		Resultado:   row.Resultado,
		CalculadoEm: row.CalculadoEm,
	}, nil
}

// UltimoResultado returns the most recent snapshot, or nil when none exists.
func (c *Client) UltimoResultado(ctx context.Context, processoID string) (*domain.ResultadoArmazenado, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UltimoResultado")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	path := fmt.Sprintf("resultados_calculo?processo_id=eq.%s&order=calculado_em.desc&limit=1", url.QueryEscape(processoID))

	var rows []resultadoRow
	err := c.guard.Do(ctx, "supabase.ultimo_resultado", func() error {
		rows = nil
		return c.getRows(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrap("supabase/resultados_calculo", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	return &domain.ResultadoArmazenado{
		ID:          r.ID,
		ProcessoID:  r.ProcessoID,
		Resultado:   r.Resultado,
		CalculadoEm: r.CalculadoEm,
	}, nil
}
