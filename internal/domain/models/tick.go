package models

import "encoding/json"

// Tick is the latest known market state of one instrument.
type Tick struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	ChangePrice      float64 `json:"changePrice"`
	ChangeRate       float64 `json:"changeRate"`
	CumulativeVolume int64   `json:"volume"`
	// TradeTime is the upstream HHMMSS string; it is not monotonic across reconnects.
	TradeTime string `json:"tradeTime"`
}

// TradedValue is price times cumulative session volume. It is derived on every
// call and never stored.
func (t Tick) TradedValue() float64 {
	return t.Price * float64(t.CumulativeVolume)
}

type tickJSON Tick

// MarshalJSON emits the derived traded value next to the stored fields.
func (t Tick) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		tickJSON
		TradedValue float64 `json:"tradedValue"`
	}{tickJSON(t), t.TradedValue()})
}

// UnmarshalJSON ignores tradedValue so it can never drift from price*volume.
func (t *Tick) UnmarshalJSON(b []byte) error {
	var v tickJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Tick(v)
	return nil
}
