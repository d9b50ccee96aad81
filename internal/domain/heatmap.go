package domain

// HeatmapStock is one tile in the sector heatmap.
type HeatmapStock struct {
	Ticker    string   `json:"ticker"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Change    float64  `json:"change"` // percentage change over the period
	MarketCap *float64 `json:"market_cap,omitempty"`
}

// HeatmapSector groups stocks by GICS sector with the average change.
type HeatmapSector struct {
	Name   string         `json:"name"`
	Change float64        `json:"change"`
	Stocks []HeatmapStock `json:"stocks"`
}

// HeatmapResponse is the full heatmap payload.
type HeatmapResponse struct {
	Sectors     []HeatmapSector `json:"sectors"`
	Period      string          `json:"period"`
	Universe    string          `json:"universe"`
	GeneratedAt string          `json:"generated_at"` // ISO-8601
	CachedAt    int64           `json:"cached_at"`    // ms since epoch
}
