package pena_test

import (
	"testing"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/pena"
)

func TestNormalizarFracao(t *testing.T) {
	tests := []struct {
		in   float64
		want pena.Fracao
		ok   bool
	}{
		{0.1667, pena.Fracao{Num: 1, Den: 6}, true},
		{1.0 / 6, pena.Fracao{Num: 1, Den: 6}, true},
		{0.2, pena.Fracao{Num: 1, Den: 5}, true},
		{0.4, pena.Fracao{Num: 2, Den: 5}, true},
		{0.3333, pena.Fracao{Num: 1, Den: 3}, true},
		{0.6667, pena.Fracao{Num: 2, Den: 3}, true},
		{0.5, pena.Fracao{Num: 1, Den: 2}, true},
		{1, pena.Fracao{Num: 1, Den: 1}, true},
		{0.123456, pena.Fracao{}, false},
		{0, pena.Fracao{}, false},
		{1.2, pena.Fracao{}, false},
	}

	for _, tt := range tests {
		got, ok := pena.NormalizarFracao(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizarFracao(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLimiar(t *testing.T) {
	tests := []struct {
		total  int
		fracao float64
		want   int
	}{
		{1800, 0.1667, 300},
		{1800, 1.0 / 6, 300},
		{1801, 0.1667, 301},
		{1000, 0.4, 400},
		{1001, 0.4, 401},
		{100, 1, 100},
		{1000, 0.123456, 124},
	}

	for _, tt := range tests {
		if got := pena.Limiar(tt.total, tt.fracao); got != tt.want {
			t.Errorf("Limiar(%d, %v) = %d; want %d", tt.total, tt.fracao, got, tt.want)
		}
	}
}

func TestFracaoDoTipo(t *testing.T) {
	f, ok := pena.FracaoDoTipo(domain.TipoHediondoReincidente)
	if !ok || f != pena.TresQuintos {
		t.Errorf("expected 3/5, got %v (ok=%v)", f, ok)
	}
	if f.String() != "3/5" {
		t.Errorf("expected '3/5', got '%s'", f.String())
	}

	if _, ok := pena.FracaoDoTipo("desconhecido"); ok {
		t.Error("expected unknown category to be rejected")
	}
}

func TestParseFracao(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1/6", 1.0 / 6, false},
		{" 2 / 5 ", 0.4, false},
		{"0.1667", 0.1667, false},
		{"0,1667", 0.1667, false},
		{"1/0", 0, true},
		{"a/6", 0, true},
		{"um sexto", 0, true},
	}

	for _, tt := range tests {
		got, err := pena.ParseFracao(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFracao(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFracao(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFracao(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
