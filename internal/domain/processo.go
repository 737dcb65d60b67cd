package domain

import "time"

// ============================================================
// Case records
// ============================================================

// Processo is a persisted criminal-execution case owned by a lawyer (OwnerID
// is the Supabase auth user id taken from the JWT "sub" claim).
type Processo struct {
	ID       string        `json:"id"`
	OwnerID  string        `json:"ownerId"`
	Sentenca DadosSentenca `json:"sentenca"`
	Ativo    bool          `json:"ativo"`
	CriadoEm time.Time     `json:"criadoEm"`
}

// ProcessoDetalhado is a case together with its custody and remission history.
type ProcessoDetalhado struct {
	Processo
	Episodios []EpisodioCustodia `json:"episodios"`
	Remicoes  []Remissao         `json:"remicoes"`
	Eventos   []EventoProcessual `json:"eventos"`
}

// ResultadoArmazenado is a calculation snapshot stored for a case.
type ResultadoArmazenado struct {
	ID          string           `json:"id"`
	ProcessoID  string           `json:"processoId"`
	Resultado   ResultadoCalculo `json:"resultado"`
	CalculadoEm time.Time        `json:"calculadoEm"`
}

// ============================================================
// API requests / responses
// ============================================================

// CalculoRequest is the body of POST /v1/calculos.
// DataBase is optional; when absent the service uses today's date.
type CalculoRequest struct {
	Sentenca  DadosSentenca      `json:"sentenca"`
	Episodios []EpisodioCustodia `json:"episodios"`
	Remicoes  []Remissao         `json:"remicoes"`
	DataBase  *Data              `json:"dataBase,omitempty"`
}

// CriarProcessoRequest is the body of POST /v1/processos. The custody and
// remission history is optional and may be recorded later.
type CriarProcessoRequest struct {
	Sentenca  DadosSentenca      `json:"sentenca"`
	Episodios []EpisodioCustodia `json:"episodios,omitempty"`
	Remicoes  []Remissao         `json:"remicoes,omitempty"`
	Eventos   []EventoProcessual `json:"eventos,omitempty"`
}

// UnificacaoRequest is the body of POST /v1/penas/unificar.
type UnificacaoRequest struct {
	Crimes []Crime `json:"crimes"`
}

// UnificacaoResponse is an advisory aggregation of crimes into a single
// sentence length and progression fraction.
type UnificacaoResponse struct {
	TotalDias        int            `json:"totalDias"`
	FracaoProgressao float64        `json:"fracaoProgressao"`
	TipoMaisGravoso  TipoPercentual `json:"tipoMaisGravoso"`
}

// ============================================================
// Batch recompute
// ============================================================

// TipoEventoRecalculado is the type of the event emitted when a recompute
// moves a case's dates.
const TipoEventoRecalculado = "calculo.recalculado"

// EventoRecalculo is published when a recompute changes a case's dates.
type EventoRecalculo struct {
	ID             string            `json:"id"`
	Tipo           string            `json:"tipo"`
	ProcessoID     string            `json:"processoId"`
	OwnerID        string            `json:"ownerId"`
	NumeroProcesso string            `json:"numeroProcesso,omitempty"`
	Anterior       *ResultadoCalculo `json:"anterior,omitempty"`
	Atual          ResultadoCalculo  `json:"atual"`
	OcorridoEm     time.Time         `json:"ocorridoEm"`
}

// FalhaRecalculo records why one case could not be recomputed.
type FalhaRecalculo struct {
	ProcessoID string `json:"processoId"`
	Erro       string `json:"erro"`
}

// RelatorioRecalculo summarizes one batch recompute run.
type RelatorioRecalculo struct {
	DataBase   Data             `json:"dataBase"`
	Total      int              `json:"total"`
	Calculados int              `json:"calculados"`
	Alterados  int              `json:"alterados"`
	Falhas     []FalhaRecalculo `json:"falhas"`
	DuracaoMs  int64            `json:"duracaoMs"`
}
