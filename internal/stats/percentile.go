package stats

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Percentile calcula o percentil p (0-100) pelo método nearest-rank.
// O slice precisa estar ordenado em ordem crescente. Retorna 0 para slice vazio.
//
// Nearest-rank sempre retorna uma amostra real, o que mantém os resultados
// reproduzíveis com poucas amostras. O mesmo método é usado no relatório de
// load test e no collector de recursos.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	// epsilon evita que 0.95*20 vire 19.000000000000004 e suba um rank
	rank := int(math.Ceil(p*float64(n)/100 - 1e-9))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// PercentileOf ordena uma cópia dos valores e calcula o percentil
func PercentileOf(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Percentile(sorted, p)
}

// Round arredonda para casas decimais fixas (half away from zero).
// NaN e Inf são retornados sem alteração.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 arredonda para 2 casas decimais
func Round2(v float64) float64 {
	return Round(v, 2)
}
