package pena

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
)

// Fracao is an exact fraction Num/Den of a sentence.
type Fracao struct {
	Num int
	Den int
}

var (
	UmSexto     = Fracao{1, 6}
	UmQuinto    = Fracao{1, 5}
	DoisQuintos = Fracao{2, 5}
	TresQuintos = Fracao{3, 5}
)

// Decimal fractions are usually stored rounded to four places (0.1667 for 1/6),
// so anything within half a unit of the fourth place snaps to p/q.
const (
	toleranciaDecimal = 5e-5 + 1e-12
	maxDenominador    = 12
)

func (f Fracao) Float() float64 {
	return float64(f.Num) / float64(f.Den)
}

func (f Fracao) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Limiar returns ceil(total * f) using integer arithmetic.
func (f Fracao) Limiar(total int) int {
	return (total*f.Num + f.Den - 1) / f.Den
}

// FracaoDoTipo returns the legal progression fraction of a crime category.
func FracaoDoTipo(t domain.TipoPercentual) (Fracao, bool) {
	switch t {
	case domain.TipoPrimario:
		return UmSexto, true
	case domain.TipoReincidente:
		return UmQuinto, true
	case domain.TipoHediondoPrimario:
		return DoisQuintos, true
	case domain.TipoHediondoReincidente:
		return TresQuintos, true
	}
	return Fracao{}, false
}

// NormalizarFracao snaps a decimal in (0, 1] to the simplest p/q (q <= 12)
// it approximates. ok is false when no such fraction is close enough.
func NormalizarFracao(f float64) (Fracao, bool) {
	if !(f > 0 && f <= 1) {
		return Fracao{}, false
	}
	for q := 1; q <= maxDenominador; q++ {
		p := int(math.Round(f * float64(q)))
		if p < 1 || p > q {
			continue
		}
		if math.Abs(f-float64(p)/float64(q)) <= toleranciaDecimal {
			return Fracao{p, q}, true
		}
	}
	return Fracao{}, false
}

// Limiar returns the number of effective days needed to reach fraction f of
// total, i.e. ceil(total * f) after snapping f to its exact fraction.
func Limiar(total int, f float64) int {
	if fr, ok := NormalizarFracao(f); ok {
		return fr.Limiar(total)
	}
	return int(math.Ceil(float64(total)*f - 1e-9))
}

// ParseFracao accepts "1/6", "2/3" or a decimal such as "0.1667" / "0,1667".
func ParseFracao(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, found := strings.Cut(s, "/"); found {
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return 0, fmt.Errorf("invalid fraction numerator %q", num)
		}
		d, err := strconv.Atoi(strings.TrimSpace(den))
		if err != nil || d == 0 {
			return 0, fmt.Errorf("invalid fraction denominator %q", den)
		}
		return float64(n) / float64(d), nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fraction %q", s)
	}
	return v, nil
}
