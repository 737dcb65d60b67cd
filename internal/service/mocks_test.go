package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

// --- Mocks ---

// memStore is an in-memory ProcessoStore.
type memStore struct {
	mu         sync.Mutex
	processos  map[string]domain.Processo
	episodios  map[string][]domain.EpisodioCustodia
	remicoes   map[string][]domain.Remissao
	eventos    map[string][]domain.EventoProcessual
	resultados map[string][]domain.ResultadoArmazenado
	seq        int

	// failEpisodios makes ListarEpisodios fail for the given processo.
	failEpisodios map[string]error
	saveErr       error

	// criarErr makes CriarProcesso fail after validation, as a failed
	// history insert inside the transaction would.
	criarErr error
}

func newMemStore() *memStore {
	return &memStore{
		processos:     map[string]domain.Processo{},
		episodios:     map[string][]domain.EpisodioCustodia{},
		remicoes:      map[string][]domain.Remissao{},
		eventos:       map[string][]domain.EventoProcessual{},
		resultados:    map[string][]domain.ResultadoArmazenado{},
		failEpisodios: map[string]error{},
	}
}

func (m *memStore) CriarProcesso(_ context.Context, d *domain.ProcessoDetalhado) (*domain.ProcessoDetalhado, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processos[d.ID]; ok {
		return nil, &domain.ErrConflict{Message: "duplicate processo"}
	}
	if m.criarErr != nil {
		return nil, m.criarErr
	}
	m.processos[d.ID] = d.Processo
	m.episodios[d.ID] = append([]domain.EpisodioCustodia(nil), d.Episodios...)
	m.remicoes[d.ID] = append([]domain.Remissao(nil), d.Remicoes...)
	m.eventos[d.ID] = append([]domain.EventoProcessual(nil), d.Eventos...)
	out := *d
	return &out, nil
}

func (m *memStore) ObterProcesso(_ context.Context, ownerID, processoID string) (*domain.Processo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processos[processoID]
	if !ok || (ownerID != "" && p.OwnerID != ownerID) {
		return nil, &domain.ErrNotFound{Resource: "processo", ID: processoID}
	}
	return &p, nil
}

func (m *memStore) ListarProcessos(_ context.Context, ownerID string) ([]domain.Processo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Processo
	for _, p := range m.processos {
		if ownerID == "" || p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListarProcessosAtivos(_ context.Context) ([]domain.Processo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Processo
	for _, p := range m.processos {
		if p.Ativo {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CriarEpisodio(_ context.Context, processoID string, e *domain.EpisodioCustodia) (*domain.EpisodioCustodia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodios[processoID] = append(m.episodios[processoID], *e)
	out := *e
	return &out, nil
}

func (m *memStore) ListarEpisodios(_ context.Context, processoID string) ([]domain.EpisodioCustodia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failEpisodios[processoID]; err != nil {
		return nil, err
	}
	return append([]domain.EpisodioCustodia(nil), m.episodios[processoID]...), nil
}

func (m *memStore) CriarRemicao(_ context.Context, processoID string, r *domain.Remissao) (*domain.Remissao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remicoes[processoID] = append(m.remicoes[processoID], *r)
	out := *r
	return &out, nil
}

func (m *memStore) ListarRemicoes(_ context.Context, processoID string) ([]domain.Remissao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Remissao(nil), m.remicoes[processoID]...), nil
}

func (m *memStore) CriarEvento(_ context.Context, processoID string, e *domain.EventoProcessual) (*domain.EventoProcessual, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventos[processoID] = append(m.eventos[processoID], *e)
	out := *e
	return &out, nil
}

func (m *memStore) ListarEventos(_ context.Context, processoID string) ([]domain.EventoProcessual, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.EventoProcessual(nil), m.eventos[processoID]...), nil
}

func (m *memStore) SalvarResultado(_ context.Context, processoID string, r *domain.ResultadoCalculo) (*domain.ResultadoArmazenado, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.seq++
	stored := domain.ResultadoArmazenado{
		ID:          fmt.Sprintf("res-%d", m.seq),
		ProcessoID:  processoID,
		Resultado:   *r,
		CalculadoEm: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	m.resultados[processoID] = append(m.resultados[processoID], stored)
	return &stored, nil
}

func (m *memStore) UltimoResultado(_ context.Context, processoID string) (*domain.ResultadoArmazenado, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := m.resultados[processoID]
	if len(rs) == 0 {
		return nil, nil
	}
	last := rs[len(rs)-1]
	return &last, nil
}

func (m *memStore) Ping(_ context.Context) error { return nil }

func (m *memStore) totalResultados(processoID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resultados[processoID])
}

type mockPublisher struct {
	mu      sync.Mutex
	eventos []domain.EventoRecalculo
	err     error
}

func (m *mockPublisher) Publicar(_ context.Context, ev *domain.EventoRecalculo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.eventos = append(m.eventos, *ev)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.eventos)
}

type mockArchiver struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *mockArchiver) Arquivar(_ context.Context, r *domain.ResultadoArmazenado) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	key := r.ProcessoID + "/" + r.ID + ".json"
	m.keys = append(m.keys, key)
	return key, nil
}

var errStoreDown = errors.New("connection refused")

// --- Fixtures ---

var inicio = domain.NovaData(2020, 1, 1)

func sentencaBasica() domain.DadosSentenca {
	return domain.DadosSentenca{
		TotalDias:        1000,
		RegimeInicial:    domain.RegimeFechado,
		FracaoProgressao: 0.5,
		NumeroProcesso:   "0001234-56.2020.8.26.0050",
	}
}

func episodioAberto() domain.EpisodioCustodia {
	return domain.EpisodioCustodia{
		ID:         "ep-1",
		Tipo:       domain.EpisodioPreventiva,
		Inicio:     inicio,
		Computavel: true,
	}
}

// seedProcesso stores an active case with one open episode from inicio.
func seedProcesso(store *memStore, id, owner string, sentenca domain.DadosSentenca) {
	store.processos[id] = domain.Processo{ID: id, OwnerID: owner, Sentenca: sentenca, Ativo: true}
	store.episodios[id] = []domain.EpisodioCustodia{episodioAberto()}
}
