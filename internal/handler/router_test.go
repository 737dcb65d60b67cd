package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/handler"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/service"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const jwtSecret = "handler-test-secret-with-enough-length"

// --- Mocks ---

type fakeStore struct {
	mu        sync.Mutex
	processos map[string]domain.Processo
	episodios map[string][]domain.EpisodioCustodia
	remicoes  map[string][]domain.Remissao
	eventos   map[string][]domain.EventoProcessual
	pingErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		processos: map[string]domain.Processo{},
		episodios: map[string][]domain.EpisodioCustodia{},
		remicoes:  map[string][]domain.Remissao{},
		eventos:   map[string][]domain.EventoProcessual{},
	}
}

func (f *fakeStore) CriarProcesso(_ context.Context, d *domain.ProcessoDetalhado) (*domain.ProcessoDetalhado, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processos[d.ID] = d.Processo
	f.episodios[d.ID] = d.Episodios
	f.remicoes[d.ID] = d.Remicoes
	f.eventos[d.ID] = d.Eventos
	return d, nil
}

func (f *fakeStore) ObterProcesso(_ context.Context, ownerID, processoID string) (*domain.Processo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.processos[processoID]
	if !ok || (ownerID != "" && p.OwnerID != ownerID) {
		return nil, &domain.ErrNotFound{Resource: "processo", ID: processoID}
	}
	return &p, nil
}

func (f *fakeStore) ListarProcessos(_ context.Context, ownerID string) ([]domain.Processo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Processo
	for _, p := range f.processos {
		if ownerID == "" || p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListarProcessosAtivos(_ context.Context) ([]domain.Processo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Processo
	for _, p := range f.processos {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) CriarEpisodio(_ context.Context, processoID string, e *domain.EpisodioCustodia) (*domain.EpisodioCustodia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodios[processoID] = append(f.episodios[processoID], *e)
	return e, nil
}

func (f *fakeStore) ListarEpisodios(_ context.Context, processoID string) ([]domain.EpisodioCustodia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.episodios[processoID], nil
}

func (f *fakeStore) CriarRemicao(_ context.Context, processoID string, r *domain.Remissao) (*domain.Remissao, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remicoes[processoID] = append(f.remicoes[processoID], *r)
	return r, nil
}

func (f *fakeStore) ListarRemicoes(_ context.Context, processoID string) ([]domain.Remissao, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remicoes[processoID], nil
}

func (f *fakeStore) CriarEvento(_ context.Context, processoID string, e *domain.EventoProcessual) (*domain.EventoProcessual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventos[processoID] = append(f.eventos[processoID], *e)
	return e, nil
}

func (f *fakeStore) ListarEventos(_ context.Context, processoID string) ([]domain.EventoProcessual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventos[processoID], nil
}

func (f *fakeStore) SalvarResultado(_ context.Context, processoID string, r *domain.ResultadoCalculo) (*domain.ResultadoArmazenado, error) {
	return &domain.ResultadoArmazenado{ID: "res-1", ProcessoID: processoID, Resultado: *r, CalculadoEm: time.Now()}, nil
}

func (f *fakeStore) UltimoResultado(_ context.Context, _ string) (*domain.ResultadoArmazenado, error) {
	return nil, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return f.pingErr }

// --- Helpers ---

func newTestRouter(t *testing.T, store *fakeStore) http.Handler {
	t.Helper()
	c := cache.New[*domain.ResultadoCalculo](time.Minute)
	t.Cleanup(c.Close)

	metrics := observability.NewMetrics()
	calcSvc := service.NewCalculoService(store, c, nil, nil, metrics, zap.NewNop(), 2)
	procSvc := service.NewProcessoService(store, zap.NewNop())
	return handler.NewRouter(calcSvc, procSvc, service.NewTokenValidator(jwtSecret), store, metrics, zap.NewNop())
}

func bearer(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + s
}

func userToken(t *testing.T, sub string) string {
	return bearer(t, jwt.MapClaims{"sub": sub, "role": "authenticated", "exp": time.Now().Add(time.Hour).Unix()})
}

func do(router http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seed(store *fakeStore, id, owner string) {
	store.processos[id] = domain.Processo{
		ID:      id,
		OwnerID: owner,
		Ativo:   true,
		Sentenca: domain.DadosSentenca{
			TotalDias:        1000,
			RegimeInicial:    domain.RegimeFechado,
			FracaoProgressao: 0.5,
		},
	}
	store.episodios[id] = []domain.EpisodioCustodia{
		{ID: "e1", Tipo: domain.EpisodioPreventiva, Inicio: domain.NovaData(2020, 1, 1), Computavel: true},
	}
}

// ============================================================
// Operational
// ============================================================

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	rec := do(router, http.MethodGet, "/healthz", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_StoreDown(t *testing.T) {
	store := newFakeStore()
	store.pingErr = errors.New("connection refused")
	router := newTestRouter(t, store)

	rec := do(router, http.MethodGet, "/healthz", "", "")

	var hs domain.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &hs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hs.Status != "degraded" {
		t.Errorf("expected degraded, got %s", hs.Status)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	rec := do(router, http.MethodGet, "/readyz", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t, newFakeStore())
	do(router, http.MethodPost, "/v1/calculos", "", `{"sentenca":{"totalDias":0}}`)

	rec := do(router, http.MethodGet, "/metrics", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bfa_calculos_total") {
		t.Error("expected calculation counter in /metrics output")
	}
}

// ============================================================
// Calculations
// ============================================================

func TestCalcular_OK(t *testing.T) {
	router := newTestRouter(t, newFakeStore())
	body := `{
		"sentenca": {"totalDias": 1800, "regimeInicial": "fechado", "fracaoProgressao": 0.1667},
		"episodios": [{"id": "e1", "tipo": "cumprimento_pena", "inicio": "2020-01-01"}],
		"remicoes": [{"id": "r1", "dataCredito": "2020-04-10", "dias": 50, "motivo": "trabalho"}],
		"dataBase": "2020-09-17"
	}`

	rec := do(router, http.MethodPost, "/v1/calculos", "", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res domain.ResultadoCalculo
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.DataProgressao == nil || res.DataProgressao.String() != "2020-09-07" {
		t.Errorf("expected progression 2020-09-07, got %v", res.DataProgressao)
	}
	if res.DataTermino.String() != "2024-10-16" {
		t.Errorf("expected termination 2024-10-16, got %s", res.DataTermino)
	}
}

func TestCalcular_InvalidInputReturnsField(t *testing.T) {
	router := newTestRouter(t, newFakeStore())

	rec := do(router, http.MethodPost, "/v1/calculos", "",
		`{"sentenca":{"totalDias":100,"regimeInicial":"fechado","fracaoProgressao":1.5},"episodios":[{"inicio":"2020-01-01"}]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"field":"fracaoProgressao"`) {
		t.Errorf("expected field in body, got %s", rec.Body.String())
	}
}

func TestCalcular_MalformedJSON(t *testing.T) {
	router := newTestRouter(t, newFakeStore())

	rec := do(router, http.MethodPost, "/v1/calculos", "", `{"sentenca":`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCalcular_UnresolvableIs422(t *testing.T) {
	router := newTestRouter(t, newFakeStore())

	rec := do(router, http.MethodPost, "/v1/calculos", "",
		`{"sentenca":{"totalDias":1000,"regimeInicial":"fechado","fracaoProgressao":0.5},
		  "episodios":[{"inicio":"2020-01-01","fim":"2020-03-01"}],
		  "dataBase":"2020-06-01"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnificar(t *testing.T) {
	router := newTestRouter(t, newFakeStore())

	rec := do(router, http.MethodPost, "/v1/penas/unificar", "",
		`{"crimes":[{"descricao":"roubo","artigo":"157","pena":{"anos":5,"meses":4},"tipoPercentual":"primario"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"totalDias":1945`) {
		t.Errorf("expected 1945 days, got %s", rec.Body.String())
	}
}

func TestCalculoMetricsSnapshot(t *testing.T) {
	router := newTestRouter(t, newFakeStore())

	rec := do(router, http.MethodGet, "/v1/metrics/calculos", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"period":"all_time"`) {
		t.Errorf("unexpected snapshot: %s", rec.Body.String())
	}
}

// ============================================================
// Recorded cases
// ============================================================

func TestProcessos_RequireToken(t *testing.T) {
	router := newTestRouter(t, newFakeStore())

	tests := []struct {
		name string
		auth string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bad signature", "Bearer eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodGet, "/v1/processos", tt.auth, "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestCriarProcesso(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(t, store)

	rec := do(router, http.MethodPost, "/v1/processos", userToken(t, "u1"),
		`{"sentenca":{"totalDias":1000,"regimeInicial":"fechado","fracaoProgressao":0.5},
		  "episodios":[{"tipo":"flagrante","inicio":"2021-03-04"}]}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out domain.ProcessoDetalhado
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.OwnerID != "u1" {
		t.Errorf("expected owner u1, got %s", out.OwnerID)
	}
	if len(out.Episodios) != 1 || !out.Episodios[0].Computavel {
		t.Errorf("expected one computable episode, got %+v", out.Episodios)
	}
	if len(store.processos) != 1 {
		t.Errorf("expected 1 processo stored, got %d", len(store.processos))
	}
}

func TestListarProcessos_ScopedByRole(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	seed(store, "p2", "u2")
	router := newTestRouter(t, store)

	tests := []struct {
		name  string
		auth  string
		total int
	}{
		{"user sees own", userToken(t, "u1"), 1},
		{"service role sees all", bearer(t, jwt.MapClaims{"role": domain.RoleServiceRole}), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodGet, "/v1/processos", tt.auth, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var out struct {
				Processos []domain.Processo `json:"processos"`
				Total     int               `json:"total"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Total != tt.total || len(out.Processos) != tt.total {
				t.Errorf("expected %d processos, got total=%d len=%d", tt.total, out.Total, len(out.Processos))
			}
		})
	}
}

func TestObterProcesso_OwnershipEnforced(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	if rec := do(router, http.MethodGet, "/v1/processos/p1", userToken(t, "u1"), ""); rec.Code != http.StatusOK {
		t.Errorf("owner: expected 200, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/v1/processos/p1", userToken(t, "u2"), ""); rec.Code != http.StatusNotFound {
		t.Errorf("other user: expected 404, got %d", rec.Code)
	}
	admin := bearer(t, jwt.MapClaims{"role": domain.RoleServiceRole})
	if rec := do(router, http.MethodGet, "/v1/processos/p1", admin, ""); rec.Code != http.StatusOK {
		t.Errorf("service role: expected 200, got %d", rec.Code)
	}
}

func TestRegistrarRemicao(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	rec := do(router, http.MethodPost, "/v1/processos/p1/remicoes", userToken(t, "u1"),
		`{"dataCredito":"2020-05-01","dias":10,"motivo":"estudo"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodPost, "/v1/processos/p1/remicoes", userToken(t, "u1"),
		`{"dataCredito":"2020-05-01","dias":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero days, got %d", rec.Code)
	}
}

func TestRegistrarEpisodio_EndBeforeStart(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	rec := do(router, http.MethodPost, "/v1/processos/p1/episodios", userToken(t, "u1"),
		`{"tipo":"preventiva","inicio":"2020-05-01","fim":"2020-04-01"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRegistrarEvento(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	rec := do(router, http.MethodPost, "/v1/processos/p1/eventos", userToken(t, "u1"),
		`{"tipo":"condenacao","data":"2019-11-20"}`)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCalcularProcesso(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	rec := do(router, http.MethodGet, "/v1/processos/p1/calculo?data_base=2020-04-10", userToken(t, "u1"), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stored domain.ResultadoArmazenado
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.Resultado.DiasCumpridosHoje != 100 {
		t.Errorf("expected 100 days served, got %d", stored.Resultado.DiasCumpridosHoje)
	}
}

func TestCalcularProcesso_BadDate(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	rec := do(router, http.MethodGet, "/v1/processos/p1/calculo?data_base=10/04/2020", userToken(t, "u1"), "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecalculos_RequiresServiceRole(t *testing.T) {
	store := newFakeStore()
	seed(store, "p1", "u1")
	router := newTestRouter(t, store)

	if rec := do(router, http.MethodPost, "/v1/admin/recalculos", userToken(t, "u1"), ""); rec.Code != http.StatusForbidden {
		t.Errorf("user: expected 403, got %d", rec.Code)
	}

	admin := bearer(t, jwt.MapClaims{"role": domain.RoleServiceRole})
	rec := do(router, http.MethodPost, "/v1/admin/recalculos?data_base=2020-04-10", admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("service role: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var rel domain.RelatorioRecalculo
	if err := json.Unmarshal(rec.Body.Bytes(), &rel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rel.Total != 1 || rel.Calculados != 1 || rel.Alterados != 1 {
		t.Errorf("unexpected report: %+v", rel)
	}
}
