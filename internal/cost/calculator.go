// Package cost prices reasoning calls from their token usage.
package cost

// Rates holds per-model pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	// Firecrawl is the price of one scrape credit.
	Firecrawl float64 `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Usage is the token count of one call.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost in USD of one Messages call. Unknown models
// cost nothing.
func (c *Calculator) Claude(model string, isBatch bool, u Usage) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	mul := 1.0
	if isBatch && rate.BatchDiscount > 0 {
		mul = rate.BatchDiscount
	}

	in := (float64(u.Input) / 1e6) * rate.Input
	out := (float64(u.Output) / 1e6) * rate.Output
	cw := (float64(u.CacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	cr := (float64(u.CacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return (in + out + cw + cr) * mul
}

// FirecrawlScrape returns the cost of one page scrape.
func (c *Calculator) FirecrawlScrape() float64 {
	if c == nil {
		return 0
	}
	return c.rates.Firecrawl
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-1-20250805": {
				Input: 15.00, Output: 75.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Firecrawl: 19.00 / 3000,
	}
}
