package pena_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/pena"
)

func TestPenaEmDias(t *testing.T) {
	got := pena.PenaEmDias(domain.Pena{Anos: 5, Meses: 2, Dias: 3})
	if got != 5*365+60+3 {
		t.Errorf("expected %d, got %d", 5*365+60+3, got)
	}
}

func TestUnificar(t *testing.T) {
	crimes := []domain.Crime{
		{ID: "c1", Artigo: "155", Pena: domain.Pena{Anos: 2}, TipoPercentual: domain.TipoPrimario},
		{ID: "c2", Artigo: "157", Pena: domain.Pena{Anos: 3, Meses: 6}, TipoPercentual: domain.TipoReincidente},
	}

	res, err := pena.Unificar(crimes)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.TotalDias != 2*365+3*365+180 {
		t.Errorf("expected %d days, got %d", 2*365+3*365+180, res.TotalDias)
	}
	if res.FracaoProgressao != 0.2 {
		t.Errorf("expected fraction 0.2, got %v", res.FracaoProgressao)
	}
	if res.TipoMaisGravoso != domain.TipoReincidente {
		t.Errorf("expected reincidente, got %s", res.TipoMaisGravoso)
	}
}

func TestUnificar_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		crimes []domain.Crime
		field  string
	}{
		{"empty", nil, "crimes"},
		{"negative", []domain.Crime{{Pena: domain.Pena{Anos: -1}, TipoPercentual: domain.TipoPrimario}}, "crimes[0].pena"},
		{"unknown category", []domain.Crime{{Pena: domain.Pena{Anos: 1}, TipoPercentual: "grave"}}, "crimes[0].tipoPercentual"},
		{"zero total", []domain.Crime{{TipoPercentual: domain.TipoPrimario}}, "crimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pena.Unificar(tt.crimes)

			var invalid *domain.ErrInvalidInput
			if !errors.As(err, &invalid) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if invalid.Field != tt.field {
				t.Errorf("expected field '%s', got '%s'", tt.field, invalid.Field)
			}
		})
	}
}
