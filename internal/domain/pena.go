// Package domain defines the core entities of the legal assistant BFA:
// sentence data, custody history, remission credits and calculation results.
// These models are independent of persistence and transport.
package domain

import "github.com/goccy/go-json"

// ============================================================
// Crimes
// ============================================================

// TipoPercentual selects the legal progression fraction of a crime.
type TipoPercentual string

const (
	TipoPrimario            TipoPercentual = "primario"
	TipoReincidente         TipoPercentual = "reincidente"
	TipoHediondoPrimario    TipoPercentual = "hediondo_primario"
	TipoHediondoReincidente TipoPercentual = "hediondo_reincidente"
)

// Pena is a penalty expressed in years, months and days.
type Pena struct {
	Anos  int `json:"anos"`
	Meses int `json:"meses"`
	Dias  int `json:"dias"`
}

// Crime is one criminal charge within a sentence.
type Crime struct {
	ID             string         `json:"id,omitempty"`
	Descricao      string         `json:"descricao"`
	Artigo         string         `json:"artigo"`
	Pena           Pena           `json:"pena"`
	TipoPercentual TipoPercentual `json:"tipoPercentual"`
}

// ============================================================
// Custody episodes & remission credits
// ============================================================

// TipoEpisodio classifies a custody episode.
type TipoEpisodio string

const (
	EpisodioFlagrante       TipoEpisodio = "flagrante"
	EpisodioPreventiva      TipoEpisodio = "preventiva"
	EpisodioTemporaria      TipoEpisodio = "temporaria"
	EpisodioCumprimentoPena TipoEpisodio = "cumprimento_pena"
	EpisodioDomiciliar      TipoEpisodio = "domiciliar"
	EpisodioInternacao      TipoEpisodio = "internacao"
	EpisodioOutro           TipoEpisodio = "outro"
)

// Valido reports whether t is a known episode type.
func (t TipoEpisodio) Valido() bool {
	switch t {
	case EpisodioFlagrante, EpisodioPreventiva, EpisodioTemporaria, EpisodioCumprimentoPena,
		EpisodioDomiciliar, EpisodioInternacao, EpisodioOutro:
		return true
	}
	return false
}

// EpisodioCustodia is a continuous interval of actual or constructive confinement.
// Inicio is inclusive; a nil Fim means the episode is still ongoing.
type EpisodioCustodia struct {
	ID          string       `json:"id"`
	Tipo        TipoEpisodio `json:"tipo"`
	Inicio      Data         `json:"inicio"`
	Fim         *Data        `json:"fim,omitempty"`
	Computavel  bool         `json:"computavel"`
	Observacoes string       `json:"observacoes,omitempty"`
}

// Aberto reports whether the episode has no end date.
func (e *EpisodioCustodia) Aberto() bool {
	return e.Fim == nil
}

// MotivoRemicao is the activity a remission credit was granted for.
type MotivoRemicao string

const (
	RemicaoTrabalho MotivoRemicao = "trabalho"
	RemicaoEstudo   MotivoRemicao = "estudo"
	RemicaoLeitura  MotivoRemicao = "leitura"
	RemicaoOutro    MotivoRemicao = "outro"
)

func (m MotivoRemicao) Valido() bool {
	switch m {
	case RemicaoTrabalho, RemicaoEstudo, RemicaoLeitura, RemicaoOutro:
		return true
	}
	return false
}

// Remissao is a discrete grant of remitted days recognized on DataCredito.
type Remissao struct {
	ID          string        `json:"id"`
	DataCredito Data          `json:"dataCredito"`
	Dias        int           `json:"dias"`
	Motivo      MotivoRemicao `json:"motivo"`
	Observacoes string        `json:"observacoes,omitempty"`
}

// ============================================================
// Procedural events (audit only)
// ============================================================

// TipoEventoProcessual classifies a procedural event.
type TipoEventoProcessual string

const (
	EventoCondenacao TipoEventoProcessual = "condenacao"
	EventoUnificacao TipoEventoProcessual = "unificacao"
	EventoProgressao TipoEventoProcessual = "progressao"
	EventoRegressao  TipoEventoProcessual = "regressao"
	EventoLivramento TipoEventoProcessual = "livramento"
	EventoIndulto    TipoEventoProcessual = "indulto"
	EventoOutro      TipoEventoProcessual = "outro"
)

func (t TipoEventoProcessual) Valido() bool {
	switch t {
	case EventoCondenacao, EventoUnificacao, EventoProgressao, EventoRegressao,
		EventoLivramento, EventoIndulto, EventoOutro:
		return true
	}
	return false
}

// EventoProcessual records when an official determination was made.
// It does not take part in the date computation.
type EventoProcessual struct {
	ID          string               `json:"id"`
	Tipo        TipoEventoProcessual `json:"tipo"`
	Data        Data                 `json:"data"`
	Observacoes string               `json:"observacoes,omitempty"`
}

// ============================================================
// Sentence
// ============================================================

// Regime is the prison regime category.
type Regime string

const (
	RegimeFechado    Regime = "fechado"
	RegimeSemiaberto Regime = "semiaberto"
	RegimeAberto     Regime = "aberto"
)

// DadosSentenca is the aggregate input of a calculation.
// TotalDias is the single source of truth for the sentence length.
type DadosSentenca struct {
	Crimes            []Crime  `json:"crimes,omitempty"`
	TotalDias         int      `json:"totalDias"`
	RegimeInicial     Regime   `json:"regimeInicial"`
	FracaoProgressao  float64  `json:"fracaoProgressao"`
	FracaoLivramento  *float64 `json:"fracaoLivramento,omitempty"`
	DataInicioTeorica *Data    `json:"dataInicioTeorica,omitempty"`

	NumeroProcesso      string `json:"numeroProcesso,omitempty"`
	Vara                string `json:"vara,omitempty"`
	Juiz                string `json:"juiz,omitempty"`
	DataTransitoJulgado *Data  `json:"dataTransitoJulgado,omitempty"`
	Observacoes         string `json:"observacoes,omitempty"`
}

// ============================================================
// Timeline & result
// ============================================================

// TipoPonto identifies what a timeline point represents.
type TipoPonto string

const (
	PontoInicioEpisodio TipoPonto = "inicio_episodio"
	PontoFimEpisodio    TipoPonto = "fim_episodio"
	PontoCreditoRemicao TipoPonto = "credito_remicao"
)

// PontoTempo is a normalized timeline event used by the calculation sweep.
// Valor is +1 at an episode start, -1 at an episode end, or the credited days.
type PontoTempo struct {
	Data       Data      `json:"data"`
	Tipo       TipoPonto `json:"tipo"`
	EpisodioID string    `json:"episodioId,omitempty"`
	RemissaoID string    `json:"remissaoId,omitempty"`
	Valor      int       `json:"valor"`
}

// ResultadoCalculo is the output of a sentence calculation.
// Optional fields are nil when the corresponding threshold does not apply
// or can never be reached.
type ResultadoCalculo struct {
	DataBase Data `json:"dataBase"`

	DataProgressao *Data `json:"dataProgressao,omitempty"`
	DataLivramento *Data `json:"dataLivramento,omitempty"`
	DataTermino    Data  `json:"dataTermino"`

	DiasCumpridosHoje      int `json:"diasCumpridosHoje"`
	DiasCustodiaHoje       int `json:"diasCustodiaHoje"`
	RemicoesAcumuladasHoje int `json:"remicoesAcumuladasHoje"`

	LimiarProgressao            *int `json:"limiarProgressao,omitempty"`
	DiasFaltantesParaProgressao *int `json:"diasFaltantesParaProgressao,omitempty"`
	LimiarLivramento            *int `json:"limiarLivramento,omitempty"`
	DiasFaltantesParaLivramento *int `json:"diasFaltantesParaLivramento,omitempty"`
	DiasFaltantesParaTermino    int  `json:"diasFaltantesParaTermino"`
}

// UnmarshalJSON defaults Computavel to true when the field is absent.
func (e *EpisodioCustodia) UnmarshalJSON(b []byte) error {
	type alias EpisodioCustodia
	a := alias{Computavel: true}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*e = EpisodioCustodia(a)
	return nil
}
