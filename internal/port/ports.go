// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// ProcessoStore defines all data operations for recorded cases.
// Implemented by the Supabase adapter and by the Postgres adapter.
type ProcessoStore interface {
	// Processos. CriarProcesso stores the case together with its history:
	// either all of it is kept or no active case is left behind.
	// An empty ownerID on ObterProcesso and ListarProcessos skips the owner filter.
	CriarProcesso(ctx context.Context, p *domain.ProcessoDetalhado) (*domain.ProcessoDetalhado, error)
	ObterProcesso(ctx context.Context, ownerID, processoID string) (*domain.Processo, error)
	ListarProcessos(ctx context.Context, ownerID string) ([]domain.Processo, error)
	ListarProcessosAtivos(ctx context.Context) ([]domain.Processo, error)

	// Custody episodes
	CriarEpisodio(ctx context.Context, processoID string, e *domain.EpisodioCustodia) (*domain.EpisodioCustodia, error)
	ListarEpisodios(ctx context.Context, processoID string) ([]domain.EpisodioCustodia, error)

	// Remission credits
	CriarRemicao(ctx context.Context, processoID string, r *domain.Remissao) (*domain.Remissao, error)
	ListarRemicoes(ctx context.Context, processoID string) ([]domain.Remissao, error)

	// Procedural events
	CriarEvento(ctx context.Context, processoID string, e *domain.EventoProcessual) (*domain.EventoProcessual, error)
	ListarEventos(ctx context.Context, processoID string) ([]domain.EventoProcessual, error)

	// Result snapshots
	SalvarResultado(ctx context.Context, processoID string, r *domain.ResultadoCalculo) (*domain.ResultadoArmazenado, error)
	UltimoResultado(ctx context.Context, processoID string) (*domain.ResultadoArmazenado, error)

	Ping(ctx context.Context) error
}

// EventPublisher emits recalculation events to downstream consumers.
type EventPublisher interface {
	Publicar(ctx context.Context, evento *domain.EventoRecalculo) error
	Close() error
}

// ResultadoArchiver keeps an immutable copy of every computed snapshot.
type ResultadoArchiver interface {
	Arquivar(ctx context.Context, r *domain.ResultadoArmazenado) (string, error)
}

// TokenValidator validates bearer tokens and returns the caller identity.
type TokenValidator interface {
	Validar(token string) (*domain.Identidade, error)
}
