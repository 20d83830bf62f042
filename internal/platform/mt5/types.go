package mt5

import "github.com/shopspring/decimal"

// Trade retcodes returned by the bridge, mirroring the terminal's
// TRADE_RETCODE_* constants. Only DONE confirms execution.
const (
	retcodeDone        = 10009
	retcodeDonePartial = 10010
)

type openRequest struct {
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Volume     decimal.Decimal  `json:"volume"`
	Kind       string           `json:"kind"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	StopLoss   *decimal.Decimal `json:"sl,omitempty"`
	TakeProfit *decimal.Decimal `json:"tp,omitempty"`
}

type closeRequest struct {
	Ticket string          `json:"ticket"`
	Symbol string          `json:"symbol,omitempty"`
	Volume decimal.Decimal `json:"volume"`
}

type tradeResponse struct {
	Retcode int             `json:"retcode"`
	Ticket  string          `json:"ticket"`
	Price   decimal.Decimal `json:"price"`
	Time    int64           `json:"time"` // unix milliseconds
	Comment string          `json:"comment"`
}

type tickMessage struct {
	Symbol string          `json:"symbol"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	TimeMs int64           `json:"time"`
}
