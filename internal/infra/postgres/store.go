// Package postgres implements port.ProcessoStore on database/sql with the
// lib/pq driver, for deployments that talk to Postgres directly instead of
// through Supabase PostgREST.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/resilience"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("postgres")

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Store is a ProcessoStore backed by Postgres.
type Store struct {
	db    *sql.DB
	guard *resilience.Guard
}

// NewStore wraps an open *sql.DB. All calls go through guard.
func NewStore(db *sql.DB, guard *resilience.Guard) *Store {
	return &Store{db: db, guard: guard}
}

// Open connects with the lib/pq driver.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Postgres.Ping")
	defer span.End()

	return wrap("postgres/ping", s.guard.Do(ctx, "postgres.ping", func() error {
		return s.db.PingContext(ctx)
	}))
}

// classify marks errors that must not be retried.
func classify(err error, notFound *domain.ErrNotFound) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return resilience.Permanent(notFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolation {
			return resilience.Permanent(&domain.ErrConflict{Message: "record already exists"})
		}
		// Class 22 (data exception) and 23 (integrity) will fail again.
		if class := pqErr.Code.Class(); class == "22" || class == "23" {
			return resilience.Permanent(err)
		}
	}
	return err
}

func wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf       *domain.ErrNotFound
		conflict *domain.ErrConflict
		open     *domain.ErrCircuitOpen
		timeout  *domain.ErrTimeout
	)
	if errors.As(err, &nf) || errors.As(err, &conflict) || errors.As(err, &open) || errors.As(err, &timeout) {
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// ============================================================
// Nullable column helpers
// ============================================================

func nullData(d *domain.Data) sql.NullTime {
	if d == nil || d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}

func dataPtr(t sql.NullTime) *domain.Data {
	if !t.Valid {
		return nil
	}
	d := domain.DataDe(t.Time)
	return &d
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// ============================================================
// Processos
// ============================================================

const processoColumns = `id, owner_id, numero_processo, vara, juiz, total_dias, regime_inicial,
	fracao_progressao, fracao_livramento, data_inicio_teorica, data_transito_julgado,
	crimes, observacoes, ativo, criado_em`

type scanner interface {
	Scan(dest ...any) error
}

func scanProcesso(row scanner) (domain.Processo, error) {
	var (
		p          domain.Processo
		regime     string
		livramento sql.NullFloat64
		inicio     sql.NullTime
		transito   sql.NullTime
		crimes     []byte
	)
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Sentenca.NumeroProcesso, &p.Sentenca.Vara, &p.Sentenca.Juiz,
		&p.Sentenca.TotalDias, &regime, &p.Sentenca.FracaoProgressao, &livramento,
		&inicio, &transito, &crimes, &p.Sentenca.Observacoes, &p.Ativo, &p.CriadoEm,
	)
	if err != nil {
		return domain.Processo{}, err
	}
	p.Sentenca.RegimeInicial = domain.Regime(regime)
	p.Sentenca.FracaoLivramento = floatPtr(livramento)
	p.Sentenca.DataInicioTeorica = dataPtr(inicio)
	p.Sentenca.DataTransitoJulgado = dataPtr(transito)
	if len(crimes) > 0 {
		if err := json.Unmarshal(crimes, &p.Sentenca.Crimes); err != nil {
			return domain.Processo{}, fmt.Errorf("decode crimes: %w", err)
		}
	}
	return p, nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CriarProcesso inserts the case and its whole history in one transaction.
func (s *Store) CriarProcesso(ctx context.Context, d *domain.ProcessoDetalhado) (*domain.ProcessoDetalhado, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CriarProcesso")
	defer span.End()
	span.SetAttributes(
		attribute.String("processo.id", d.ID),
		attribute.Int("episodios", len(d.Episodios)),
		attribute.Int("remicoes", len(d.Remicoes)),
	)

	crimes := d.Sentenca.Crimes
	if crimes == nil {
		crimes = []domain.Crime{}
	}
	crimesJSON, err := json.Marshal(crimes)
	if err != nil {
		return nil, fmt.Errorf("encode crimes: %w", err)
	}

	out := *d
	err = s.guard.Do(ctx, "postgres.criar_processo", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			criado, err := insertProcesso(ctx, tx, &d.Processo, crimesJSON)
			if err != nil {
				return fmt.Errorf("insert processo: %w", err)
			}
			out.CriadoEm = criado
			for i := range d.Episodios {
				if err := insertEpisodio(ctx, tx, d.ID, &d.Episodios[i]); err != nil {
					return fmt.Errorf("insert episodio: %w", err)
				}
			}
			for i := range d.Remicoes {
				if err := insertRemicao(ctx, tx, d.ID, &d.Remicoes[i]); err != nil {
					return fmt.Errorf("insert remicao: %w", err)
				}
			}
			for i := range d.Eventos {
				if err := insertEvento(ctx, tx, d.ID, &d.Eventos[i]); err != nil {
					return fmt.Errorf("insert evento: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrap("postgres/processos", err)
	}
	return &out, nil
}

// inTx runs fn in a transaction, rolling back when fn fails. The error of fn
// is classified so that integrity violations are not retried.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, nil)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(err, nil)
	}
	return classify(tx.Commit(), nil)
}

func insertProcesso(ctx context.Context, q dbtx, p *domain.Processo, crimesJSON []byte) (time.Time, error) {
	query := `
		INSERT INTO processos (id, owner_id, numero_processo, vara, juiz, total_dias, regime_inicial,
			fracao_progressao, fracao_livramento, data_inicio_teorica, data_transito_julgado,
			crimes, observacoes, ativo)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING criado_em
	`
	var criado time.Time
	err := q.QueryRowContext(ctx, query,
		p.ID, p.OwnerID, p.Sentenca.NumeroProcesso, p.Sentenca.Vara, p.Sentenca.Juiz,
		p.Sentenca.TotalDias, string(p.Sentenca.RegimeInicial), p.Sentenca.FracaoProgressao,
		nullFloat(p.Sentenca.FracaoLivramento), nullData(p.Sentenca.DataInicioTeorica),
		nullData(p.Sentenca.DataTransitoJulgado), crimesJSON, p.Sentenca.Observacoes, p.Ativo,
	).Scan(&criado)
	return criado, err
}

func insertEpisodio(ctx context.Context, q dbtx, processoID string, e *domain.EpisodioCustodia) error {
	query := `
		INSERT INTO episodios_custodia (id, processo_id, tipo, inicio, fim, computavel, observacoes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID, processoID, string(e.Tipo), e.Inicio.Time, nullData(e.Fim), e.Computavel, e.Observacoes)
	return err
}

func insertRemicao(ctx context.Context, q dbtx, processoID string, r *domain.Remissao) error {
	query := `
		INSERT INTO remicoes (id, processo_id, data_credito, dias, motivo, observacoes)
		VALUES ($1,$2,$3,$4,$5,$6)
	`
	_, err := q.ExecContext(ctx, query,
		r.ID, processoID, r.DataCredito.Time, r.Dias, string(r.Motivo), r.Observacoes)
	return err
}

func insertEvento(ctx context.Context, q dbtx, processoID string, e *domain.EventoProcessual) error {
	query := `
		INSERT INTO eventos_processuais (id, processo_id, tipo, data, observacoes)
		VALUES ($1,$2,$3,$4,$5)
	`
	_, err := q.ExecContext(ctx, query, e.ID, processoID, string(e.Tipo), e.Data.Time, e.Observacoes)
	return err
}

// ObterProcesso loads one case. An empty ownerID skips the ownership filter.
func (s *Store) ObterProcesso(ctx context.Context, ownerID, processoID string) (*domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ObterProcesso")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	query := `SELECT ` + processoColumns + ` FROM processos WHERE id = $1 AND ($2 = '' OR owner_id = $2)`

	var p domain.Processo
	err := s.guard.Do(ctx, "postgres.obter_processo", func() error {
		var err error
		p, err = scanProcesso(s.db.QueryRowContext(ctx, query, processoID, ownerID))
		return classify(err, &domain.ErrNotFound{Resource: "processo", ID: processoID})
	})
	if err != nil {
		return nil, wrap("postgres/processos", err)
	}
	return &p, nil
}

// ListarProcessos lists the owner's cases, or every case when ownerID is empty.
func (s *Store) ListarProcessos(ctx context.Context, ownerID string) ([]domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListarProcessos")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	if ownerID == "" {
		return s.listarProcessos(ctx, `SELECT `+processoColumns+` FROM processos ORDER BY criado_em DESC`)
	}
	query := `SELECT ` + processoColumns + ` FROM processos WHERE owner_id = $1 ORDER BY criado_em DESC`
	return s.listarProcessos(ctx, query, ownerID)
}

func (s *Store) ListarProcessosAtivos(ctx context.Context) ([]domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListarProcessosAtivos")
	defer span.End()

	query := `SELECT ` + processoColumns + ` FROM processos WHERE ativo ORDER BY criado_em ASC`
	return s.listarProcessos(ctx, query)
}

func (s *Store) listarProcessos(ctx context.Context, query string, args ...any) ([]domain.Processo, error) {
	var out []domain.Processo
	err := s.guard.Do(ctx, "postgres.listar_processos", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return classify(err, nil)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			p, err := scanProcesso(rows)
			if err != nil {
				return resilience.Permanent(err)
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("postgres/processos", err)
	}
	if out == nil {
		out = []domain.Processo{}
	}
	return out, nil
}

// ============================================================
// Episodios de custodia
// ============================================================

func (s *Store) CriarEpisodio(ctx context.Context, processoID string, e *domain.EpisodioCustodia) (*domain.EpisodioCustodia, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CriarEpisodio")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	err := s.guard.Do(ctx, "postgres.criar_episodio", func() error {
		return classify(insertEpisodio(ctx, s.db, processoID, e), nil)
	})
	if err != nil {
		return nil, wrap("postgres/episodios_custodia", fmt.Errorf("insert episodio: %w", err))
	}

	out := *e
	return &out, nil
}

func (s *Store) ListarEpisodios(ctx context.Context, processoID string) ([]domain.EpisodioCustodia, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListarEpisodios")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	query := `
		SELECT id, tipo, inicio, fim, computavel, observacoes
		FROM episodios_custodia WHERE processo_id = $1 ORDER BY inicio ASC, id ASC
	`

	out := []domain.EpisodioCustodia{}
	err := s.guard.Do(ctx, "postgres.listar_episodios", func() error {
		rows, err := s.db.QueryContext(ctx, query, processoID)
		if err != nil {
			return classify(err, nil)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				e      domain.EpisodioCustodia
				tipo   string
				inicio time.Time
				fim    sql.NullTime
			)
			if err := rows.Scan(&e.ID, &tipo, &inicio, &fim, &e.Computavel, &e.Observacoes); err != nil {
				return resilience.Permanent(err)
			}
			e.Tipo = domain.TipoEpisodio(tipo)
			e.Inicio = domain.DataDe(inicio)
			e.Fim = dataPtr(fim)
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("postgres/episodios_custodia", err)
	}
	return out, nil
}

// ============================================================
// Remicoes
// ============================================================

func (s *Store) CriarRemicao(ctx context.Context, processoID string, r *domain.Remissao) (*domain.Remissao, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CriarRemicao")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	err := s.guard.Do(ctx, "postgres.criar_remicao", func() error {
		return classify(insertRemicao(ctx, s.db, processoID, r), nil)
	})
	if err != nil {
		return nil, wrap("postgres/remicoes", fmt.Errorf("insert remicao: %w", err))
	}

	out := *r
	return &out, nil
}

func (s *Store) ListarRemicoes(ctx context.Context, processoID string) ([]domain.Remissao, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListarRemicoes")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	query := `
		SELECT id, data_credito, dias, motivo, observacoes
		FROM remicoes WHERE processo_id = $1 ORDER BY data_credito ASC, id ASC
	`

	out := []domain.Remissao{}
	err := s.guard.Do(ctx, "postgres.listar_remicoes", func() error {
		rows, err := s.db.QueryContext(ctx, query, processoID)
		if err != nil {
			return classify(err, nil)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				r       domain.Remissao
				credito time.Time
				motivo  string
			)
			if err := rows.Scan(&r.ID, &credito, &r.Dias, &motivo, &r.Observacoes); err != nil {
				return resilience.Permanent(err)
			}
			r.DataCredito = domain.DataDe(credito)
			r.Motivo = domain.MotivoRemicao(motivo)
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("postgres/remicoes", err)
	}
	return out, nil
}

// ============================================================
// Eventos processuais
// ============================================================

func (s *Store) CriarEvento(ctx context.Context, processoID string, e *domain.EventoProcessual) (*domain.EventoProcessual, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CriarEvento")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	err := s.guard.Do(ctx, "postgres.criar_evento", func() error {
		return classify(insertEvento(ctx, s.db, processoID, e), nil)
	})
	if err != nil {
		return nil, wrap("postgres/eventos_processuais", fmt.Errorf("insert evento: %w", err))
	}

	out := *e
	return &out, nil
}

func (s *Store) ListarEventos(ctx context.Context, processoID string) ([]domain.EventoProcessual, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListarEventos")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	query := `
		SELECT id, tipo, data, observacoes
		FROM eventos_processuais WHERE processo_id = $1 ORDER BY data ASC, id ASC
	`

	out := []domain.EventoProcessual{}
	err := s.guard.Do(ctx, "postgres.listar_eventos", func() error {
		rows, err := s.db.QueryContext(ctx, query, processoID)
		if err != nil {
			return classify(err, nil)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				e    domain.EventoProcessual
				tipo string
				data time.Time
			)
			if err := rows.Scan(&e.ID, &tipo, &data, &e.Observacoes); err != nil {
				return resilience.Permanent(err)
			}
			e.Tipo = domain.TipoEventoProcessual(tipo)
			e.Data = domain.DataDe(data)
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("postgres/eventos_processuais", err)
	}
	return out, nil
}

// ============================================================
// Resultados
// ============================================================

func (s *Store) SalvarResultado(ctx context.Context, processoID string, r *domain.ResultadoCalculo) (*domain.ResultadoArmazenado, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SalvarResultado")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID), attribute.String("data_base", r.DataBase.String()))

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode resultado: %w", err)
	}

	query := `
		INSERT INTO resultados_calculo (id, processo_id, data_base, resultado)
		VALUES ($1,$2,$3,$4)
		RETURNING calculado_em
	`

	out := &domain.ResultadoArmazenado{
		ID:         uuid.New().String(),
		ProcessoID: processoID,
		Resultado:  *r,
	}
	err = s.guard.Do(ctx, "postgres.salvar_resultado", func() error {
		return classify(s.db.QueryRowContext(ctx, query, out.ID, processoID, r.DataBase.Time, payload).Scan(&out.CalculadoEm), nil)
	})
	if err != nil {
		return nil, wrap("postgres/resultados_calculo", fmt.Errorf("insert resultado: %w", err))
	}
	return out, nil
}

// UltimoResultado returns the most recent snapshot, or nil when none exists.
func (s *Store) UltimoResultado(ctx context.Context, processoID string) (*domain.ResultadoArmazenado, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UltimoResultado")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	query := `
		SELECT id, resultado, calculado_em
		FROM resultados_calculo WHERE processo_id = $1
		ORDER BY calculado_em DESC LIMIT 1
	`

	var (
		out     *domain.ResultadoArmazenado
		payload []byte
	)
	err := s.guard.Do(ctx, "postgres.ultimo_resultado", func() error {
		stored := domain.ResultadoArmazenado{ProcessoID: processoID}
		err := s.db.QueryRowContext(ctx, query, processoID).Scan(&stored.ID, &payload, &stored.CalculadoEm)
		if errors.Is(err, sql.ErrNoRows) {
			out = nil
			return nil
		}
		if err != nil {
			return classify(err, nil)
		}
		if err := json.Unmarshal(payload, &stored.Resultado); err != nil {
			return resilience.Permanent(fmt.Errorf("decode resultado: %w", err))
		}
		out = &stored
		return nil
	})
	if err != nil {
		return nil, wrap("postgres/resultados_calculo", err)
	}
	return out, nil
}
