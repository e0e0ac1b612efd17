package aggregation

import "amm-stats/internal/domain"

// AnnotatePrices sets the price of every token row found in prices.
// Tokens without a quote keep their current price.
func AnnotatePrices(stats domain.TotalStats, prices map[string]float64) {
	for _, st := range stats {
		if st == nil {
			continue
		}
		for i := range st.TokensData {
			if p, ok := prices[st.TokensData[i].Address]; ok {
				st.TokensData[i].Price = p
			}
		}
	}
}
