package pena

import (
	"fmt"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

// Day counts used to convert a penalty in years/months/days into days.
const (
	diasPorAno = 365
	diasPorMes = 30
)

// PenaEmDias converts a penalty to a number of days.
func PenaEmDias(p domain.Pena) int {
	return p.Anos*diasPorAno + p.Meses*diasPorMes + p.Dias
}

// Unificar suggests a single sentence length and progression fraction for a
// list of crimes: the sum of the penalties and the most severe fraction.
//
// This is an advisory default only. The legal unification rule is decided
// outside the engine, and Calcular always takes TotalDias as given.
func Unificar(crimes []domain.Crime) (*domain.UnificacaoResponse, error) {
	if len(crimes) == 0 {
		return nil, &domain.ErrInvalidInput{Field: "crimes", Message: "at least one crime is required"}
	}

	total := 0
	var maisGravosa Fracao
	var tipo domain.TipoPercentual

	for i, c := range crimes {
		if c.Pena.Anos < 0 || c.Pena.Meses < 0 || c.Pena.Dias < 0 {
			return nil, &domain.ErrInvalidInput{Field: fmt.Sprintf("crimes[%d].pena", i), Message: "must not be negative"}
		}
		f, ok := FracaoDoTipo(c.TipoPercentual)
		if !ok {
			return nil, &domain.ErrInvalidInput{
				Field:   fmt.Sprintf("crimes[%d].tipoPercentual", i),
				Message: fmt.Sprintf("unknown category '%s'", c.TipoPercentual),
			}
		}
		total += PenaEmDias(c.Pena)
		if maisGravosa.Den == 0 || f.Float() > maisGravosa.Float() {
			maisGravosa = f
			tipo = c.TipoPercentual
		}
	}

	if total <= 0 {
		return nil, &domain.ErrInvalidInput{Field: "crimes", Message: "total penalty must be positive"}
	}

	return &domain.UnificacaoResponse{
		TotalDias:        total,
		FracaoProgressao: maisGravosa.Float(),
		TipoMaisGravoso:  tipo,
	}, nil
}
