// Package pena implements the sentence timeline engine: given a sentence
// length, progression and parole fractions, custody episodes and remission
// credits, it computes days served, remission accumulated and the progression,
// parole and termination dates as of a reference date.
//
// The engine is a pure function. It performs no I/O, never reads the system
// clock and keeps no state, so it is safe for concurrent use.
//
// Effective served time is custody days plus remitted days: remission is
// added to time served rather than subtracted from the sentence length.
package pena

import (
	"fmt"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

// IDInicioTeorico identifies the implicit episode built from DataInicioTeorica.
const IDInicioTeorico = "inicio_teorico"

// Calcular computes the sentence timeline as of dataBase.
//
// It returns *domain.ErrInvalidInput when the input is malformed and
// *domain.ErrUnresolvableTermination when the custody history can never reach
// the full sentence. No partial result is returned on error.
func Calcular(
	sentenca domain.DadosSentenca,
	episodios []domain.EpisodioCustodia,
	remicoes []domain.Remissao,
	dataBase domain.Data,
) (*domain.ResultadoCalculo, error) {
	if err := Validar(sentenca, episodios, remicoes, dataBase); err != nil {
		return nil, err
	}

	if len(episodios) == 0 {
		episodios = []domain.EpisodioCustodia{{
			ID:         IDInicioTeorico,
			Tipo:       domain.EpisodioCumprimentoPena,
			Inicio:     *sentenca.DataInicioTeorica,
			Computavel: true,
		}}
	}

	pontos := ConstruirLinhaDoTempo(episodios, remicoes)

	custodia, remido := acumuladoEm(pontos, dataBase)
	cumpridos := custodia + remido

	termino, alcancado, ok := dataLimiar(pontos, sentenca.TotalDias)
	if !ok {
		return nil, &domain.ErrUnresolvableTermination{
			TotalDias:  sentenca.TotalDias,
			Acumulados: alcancado,
		}
	}

	res := &domain.ResultadoCalculo{
		DataBase:                 dataBase,
		DataTermino:              termino,
		DiasCumpridosHoje:        cumpridos,
		DiasCustodiaHoje:         custodia,
		RemicoesAcumuladasHoje:   remido,
		DiasFaltantesParaTermino: faltantes(sentenca.TotalDias, cumpridos),
	}

	// Open regime is the last one: there is nothing to progress to.
	if sentenca.RegimeInicial != domain.RegimeAberto {
		limiar := Limiar(sentenca.TotalDias, sentenca.FracaoProgressao)
		falta := faltantes(limiar, cumpridos)
		res.LimiarProgressao = &limiar
		res.DiasFaltantesParaProgressao = &falta
		if d, _, ok := dataLimiar(pontos, limiar); ok {
			res.DataProgressao = &d
		}
	}

	if sentenca.FracaoLivramento != nil {
		limiar := Limiar(sentenca.TotalDias, *sentenca.FracaoLivramento)
		falta := faltantes(limiar, cumpridos)
		res.LimiarLivramento = &limiar
		res.DiasFaltantesParaLivramento = &falta
		if d, _, ok := dataLimiar(pontos, limiar); ok {
			res.DataLivramento = &d
		}
	}

	return res, nil
}

// Validar checks every input before any sweep runs.
func Validar(
	sentenca domain.DadosSentenca,
	episodios []domain.EpisodioCustodia,
	remicoes []domain.Remissao,
	dataBase domain.Data,
) error {
	if err := ValidarSentenca(sentenca); err != nil {
		return err
	}
	if dataBase.IsZero() {
		return &domain.ErrInvalidInput{Field: "dataBase", Message: "required"}
	}

	if len(episodios) == 0 {
		if sentenca.DataInicioTeorica == nil || sentenca.DataInicioTeorica.IsZero() {
			return &domain.ErrInvalidInput{Field: "episodios", Message: "at least one custody episode or dataInicioTeorica is required"}
		}
	}

	for i, e := range episodios {
		if err := validarEpisodio(e); err != nil {
			err.Field = fmt.Sprintf("episodios[%d].%s", i, err.Field)
			return err
		}
	}
	for i, r := range remicoes {
		if err := validarRemissao(r); err != nil {
			err.Field = fmt.Sprintf("remicoes[%d].%s", i, err.Field)
			return err
		}
	}
	return nil
}

// ValidarSentenca checks the sentence fields alone, as when a case is recorded.
func ValidarSentenca(sentenca domain.DadosSentenca) error {
	if sentenca.TotalDias <= 0 {
		return &domain.ErrInvalidInput{Field: "totalDias", Message: "must be a positive number of days"}
	}
	if !fracaoValida(sentenca.FracaoProgressao) {
		return &domain.ErrInvalidInput{Field: "fracaoProgressao", Message: "must be in (0, 1]"}
	}
	if sentenca.FracaoLivramento != nil && !fracaoValida(*sentenca.FracaoLivramento) {
		return &domain.ErrInvalidInput{Field: "fracaoLivramento", Message: "must be in (0, 1]"}
	}
	switch sentenca.RegimeInicial {
	case "", domain.RegimeFechado, domain.RegimeSemiaberto, domain.RegimeAberto:
	default:
		return &domain.ErrInvalidInput{Field: "regimeInicial", Message: fmt.Sprintf("unknown regime '%s'", sentenca.RegimeInicial)}
	}
	return nil
}

// ValidarEpisodio checks a single custody episode before it is recorded.
func ValidarEpisodio(e domain.EpisodioCustodia) error {
	if err := validarEpisodio(e); err != nil {
		return err
	}
	return nil
}

// ValidarRemissao checks a single remission credit before it is recorded.
func ValidarRemissao(r domain.Remissao) error {
	if err := validarRemissao(r); err != nil {
		return err
	}
	return nil
}

func validarEpisodio(e domain.EpisodioCustodia) *domain.ErrInvalidInput {
	if e.Inicio.IsZero() {
		return &domain.ErrInvalidInput{Field: "inicio", Message: "required"}
	}
	if e.Tipo != "" && !e.Tipo.Valido() {
		return &domain.ErrInvalidInput{Field: "tipo", Message: fmt.Sprintf("unknown episode type '%s'", e.Tipo)}
	}
	if e.Fim != nil && e.Fim.Before(e.Inicio) {
		return &domain.ErrInvalidInput{Field: "fim", Message: "must not be before inicio"}
	}
	return nil
}

func validarRemissao(r domain.Remissao) *domain.ErrInvalidInput {
	if r.DataCredito.IsZero() {
		return &domain.ErrInvalidInput{Field: "dataCredito", Message: "required"}
	}
	if r.Dias <= 0 {
		return &domain.ErrInvalidInput{Field: "dias", Message: "must be positive"}
	}
	if r.Motivo != "" && !r.Motivo.Valido() {
		return &domain.ErrInvalidInput{Field: "motivo", Message: fmt.Sprintf("unknown reason '%s'", r.Motivo)}
	}
	return nil
}

// ValidarEvento checks a procedural event before it is recorded.
func ValidarEvento(e domain.EventoProcessual) error {
	if !e.Tipo.Valido() {
		return &domain.ErrInvalidInput{Field: "tipo", Message: fmt.Sprintf("unknown event type '%s'", e.Tipo)}
	}
	if e.Data.IsZero() {
		return &domain.ErrInvalidInput{Field: "data", Message: "required"}
	}
	return nil
}

func fracaoValida(f float64) bool {
	return f > 0 && f <= 1
}

func faltantes(limiar, cumpridos int) int {
	if cumpridos >= limiar {
		return 0
	}
	return limiar - cumpridos
}
