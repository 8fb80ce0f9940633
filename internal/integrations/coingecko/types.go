package coingecko

import (
	"math"

	"coin-chat/internal/domain"
)

type SearchResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb"`
	Large         string `json:"large"`
	MarketCapRank *int   `json:"market_cap_rank"`
}

type searchResponse struct {
	Coins []SearchResult `json:"coins"`
}

type usd struct {
	USD float64 `json:"usd"`
}

type MarketData struct {
	CurrentPrice             usd      `json:"current_price"`
	MarketCap                usd      `json:"market_cap"`
	TotalVolume              usd      `json:"total_volume"`
	High24h                  usd      `json:"high_24h"`
	Low24h                   usd      `json:"low_24h"`
	PriceChange24h           float64  `json:"price_change_24h"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  float64  `json:"price_change_percentage_7d"`
	PriceChangePercentage30d float64  `json:"price_change_percentage_30d"`
	MarketCapRank            int      `json:"market_cap_rank"`
	CirculatingSupply        float64  `json:"circulating_supply"`
	TotalSupply              *float64 `json:"total_supply"`
	ATH                      usd      `json:"ath"`
	ATHChangePercentage      usd      `json:"ath_change_percentage"`
}

type CoinDetail struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Name        string     `json:"name"`
	MarketData  MarketData `json:"market_data"`
	Description struct {
		EN string `json:"en"`
	} `json:"description"`
}

type TrendingCoin struct {
	ID            string       `json:"id"`
	CoinID        int          `json:"coin_id"`
	Name          string       `json:"name"`
	Symbol        string       `json:"symbol"`
	Thumb         string       `json:"thumb"`
	MarketCapRank int          `json:"market_cap_rank"`
	PriceBTC      float64      `json:"price_btc"`
	Score         int          `json:"score"`
	Data          TrendingData `json:"data"`
}

type TrendingData struct {
	Price                    float64            `json:"price"`
	PriceChangePercentage24h map[string]float64 `json:"price_change_percentage_24h"`
	MarketCap                string             `json:"market_cap"`
}

type trendingResponse struct {
	Coins []struct {
		Item TrendingCoin `json:"item"`
	} `json:"coins"`
}

// MarketChart holds [unix millis, value] pairs.
type MarketChart struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

type ChartSummary struct {
	Points int
	First  float64
	Last   float64
	Low    float64
	High   float64
	Change float64 // percent, first to last
}

// Summary is the zero value for an empty chart.
func (m MarketChart) Summary() ChartSummary {
	if len(m.Prices) == 0 {
		return ChartSummary{}
	}
	s := ChartSummary{
		Points: len(m.Prices),
		First:  m.Prices[0][1],
		Last:   m.Prices[len(m.Prices)-1][1],
		Low:    math.Inf(1),
		High:   math.Inf(-1),
	}
	for _, p := range m.Prices {
		s.Low = math.Min(s.Low, p[1])
		s.High = math.Max(s.High, p[1])
	}
	if s.First != 0 {
		s.Change = (s.Last - s.First) / s.First * 100
	}
	return s
}

// Snapshot is the coin data the relay expects alongside a question.
func Snapshot(c CoinDetail) domain.CoinData {
	md := c.MarketData
	return domain.CoinData{
		CurrentPrice:      md.CurrentPrice.USD,
		PriceChange24h:    md.PriceChangePercentage24h,
		MarketCap:         md.MarketCap.USD,
		Volume24h:         md.TotalVolume.USD,
		CirculatingSupply: md.CirculatingSupply,
		Rank:              float64(md.MarketCapRank),
		ATH:               md.ATH.USD,
		High24h:           md.High24h.USD,
		Low24h:            md.Low24h.USD,
	}
}
