package pena

import (
	"sort"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

// ordemPonto breaks same-day ties: episode ends are processed before episode
// starts, and remission credits after that day's custody accounting.
func ordemPonto(t domain.TipoPonto) int {
	switch t {
	case domain.PontoFimEpisodio:
		return 0
	case domain.PontoInicioEpisodio:
		return 1
	default:
		return 2
	}
}

// ConstruirLinhaDoTempo flattens computable episodes and remission credits into
// one chronologically sorted sequence. Non-computable episodes are skipped.
// Open episodes get no end point: they keep accruing past the reference date.
func ConstruirLinhaDoTempo(episodios []domain.EpisodioCustodia, remicoes []domain.Remissao) []domain.PontoTempo {
	pontos := make([]domain.PontoTempo, 0, 2*len(episodios)+len(remicoes))

	for _, e := range episodios {
		if !e.Computavel {
			continue
		}
		pontos = append(pontos, domain.PontoTempo{
			Data:       e.Inicio,
			Tipo:       domain.PontoInicioEpisodio,
			EpisodioID: e.ID,
			Valor:      1,
		})
		if e.Fim != nil {
			pontos = append(pontos, domain.PontoTempo{
				Data:       *e.Fim,
				Tipo:       domain.PontoFimEpisodio,
				EpisodioID: e.ID,
				Valor:      -1,
			})
		}
	}

	for _, r := range remicoes {
		pontos = append(pontos, domain.PontoTempo{
			Data:       r.DataCredito,
			Tipo:       domain.PontoCreditoRemicao,
			RemissaoID: r.ID,
			Valor:      r.Dias,
		})
	}

	sort.SliceStable(pontos, func(i, j int) bool {
		a, b := pontos[i], pontos[j]
		if !a.Data.Equal(b.Data) {
			return a.Data.Before(b.Data)
		}
		return ordemPonto(a.Tipo) < ordemPonto(b.Tipo)
	})

	return pontos
}

// varredura is the running state of a sweep over a sorted timeline.
type varredura struct {
	cursor   domain.Data
	ativos   int
	custodia int
	remido   int
}

func (v *varredura) efetivo() int {
	return v.custodia + v.remido
}

func (v *varredura) aplicar(p domain.PontoTempo) {
	switch p.Tipo {
	case domain.PontoInicioEpisodio, domain.PontoFimEpisodio:
		v.ativos += p.Valor
	case domain.PontoCreditoRemicao:
		v.remido += p.Valor
	}
	v.cursor = p.Data
}

// acumuladoEm sweeps the timeline up to and including d. Custody counts the
// days in [inicio, fim) of the union of active episodes strictly before d;
// remission counts every credit dated on or before d.
func acumuladoEm(pontos []domain.PontoTempo, d domain.Data) (custodia, remido int) {
	var v varredura
	for _, p := range pontos {
		if p.Data.After(d) {
			break
		}
		if v.ativos > 0 {
			v.custodia += v.cursor.DiasAte(p.Data)
		}
		v.aplicar(p)
	}
	if v.ativos > 0 && v.cursor.Before(d) {
		v.custodia += v.cursor.DiasAte(d)
	}
	return v.custodia, v.remido
}

// dataLimiar walks the timeline forward until effective served time first
// reaches limiar, extrapolating open episodes past the last point.
// When the timeline ends with no active episode short of the threshold,
// ok is false and alcancado holds the maximum effective time reachable.
func dataLimiar(pontos []domain.PontoTempo, limiar int) (data domain.Data, alcancado int, ok bool) {
	var v varredura
	for _, p := range pontos {
		if v.ativos > 0 {
			dias := v.cursor.DiasAte(p.Data)
			if v.efetivo()+dias >= limiar {
				return v.cursor.AddDias(limiar - v.efetivo()), limiar, true
			}
			v.custodia += dias
		}
		v.aplicar(p)
		if v.efetivo() >= limiar {
			return p.Data, v.efetivo(), true
		}
	}
	if v.ativos > 0 {
		return v.cursor.AddDias(limiar - v.efetivo()), limiar, true
	}
	return domain.Data{}, v.efetivo(), false
}
