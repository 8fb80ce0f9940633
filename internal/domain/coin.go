package domain

// CoinData is the snapshot of coin metrics a client sends along with a
// question. Every field is required and must be a finite number.
type CoinData struct {
	CurrentPrice      float64 `json:"currentPrice"`
	PriceChange24h    float64 `json:"priceChange24h"`
	MarketCap         float64 `json:"marketCap"`
	Volume24h         float64 `json:"volume24h"`
	CirculatingSupply float64 `json:"circulatingSupply"`
	Rank              float64 `json:"rank"`
	ATH               float64 `json:"ath"`
	High24h           float64 `json:"high24h"`
	Low24h            float64 `json:"low24h"`
}

// CoinDataFields lists the wire names of the CoinData fields in validation order.
var CoinDataFields = []string{
	"currentPrice",
	"priceChange24h",
	"marketCap",
	"volume24h",
	"circulatingSupply",
	"rank",
	"ath",
	"high24h",
	"low24h",
}

// Set assigns the field with the given wire name. It reports false for
// unknown names.
func (c *CoinData) Set(field string, v float64) bool {
	switch field {
	case "currentPrice":
		c.CurrentPrice = v
	case "priceChange24h":
		c.PriceChange24h = v
	case "marketCap":
		c.MarketCap = v
	case "volume24h":
		c.Volume24h = v
	case "circulatingSupply":
		c.CirculatingSupply = v
	case "rank":
		c.Rank = v
	case "ath":
		c.ATH = v
	case "high24h":
		c.High24h = v
	case "low24h":
		c.Low24h = v
	default:
		return false
	}
	return true
}
