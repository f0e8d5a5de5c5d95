package kis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	xhttp "ThemePulse/pkg/http"
	"ThemePulse/pkg/util"

	"golang.org/x/time/rate"
)

const trInquirePrice = "FHKST01010100"

var _ drepo.QuoteLookup = (*Quotes)(nil)

// Quotes performs point price lookups. Calls are paced by a shared limiter so
// sequential callers keep under the upstream request ceiling.
type Quotes struct {
	client     *xhttp.Client
	baseURL    string
	auth       *Auth
	limiter    *rate.Limiter
	retryMax   int
	retryDelay time.Duration
}

func NewQuotes(client *xhttp.Client, baseURL string, auth *Auth, interval time.Duration, retryMax int, retryDelay time.Duration) *Quotes {
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Quotes{
		client:     client,
		baseURL:    baseURL,
		auth:       auth,
		limiter:    lim,
		retryMax:   retryMax,
		retryDelay: retryDelay,
	}
}

type inquirePriceResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		Price      string `json:"stck_prpr"`
		Change     string `json:"prdy_vrss"`
		Sign       string `json:"prdy_vrss_sign"`
		ChangeRate string `json:"prdy_ctrt"`
		Volume     string `json:"acml_vol"`
		High       string `json:"stck_hgpr"`
		Low        string `json:"stck_lwpr"`
		Open       string `json:"stck_oprc"`
		PrevClose  string `json:"stck_sdpr"`
	} `json:"output"`
}

// Quote fetches the current price of code. Transient network faults are
// retried a bounded number of times.
func (q *Quotes) Quote(ctx context.Context, code string) (models.Tick, error) {
	headers, err := q.auth.Headers(ctx, trInquirePrice)
	if err != nil {
		return models.Tick{}, err
	}

	var resp inquirePriceResponse
	err = withRetry(ctx, q.retryMax, q.retryDelay, func() error {
		if err := q.limiter.Wait(ctx); err != nil {
			return err
		}
		resp = inquirePriceResponse{}
		return q.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     q.baseURL + "/uapi/domestic-stock/v1/quotations/inquire-price",
			Headers: headers,
			QueryParams: map[string]string{
				"FID_COND_MRKT_DIV_CODE": "J",
				"FID_INPUT_ISCD":         code,
			},
		}, &resp)
	})
	if err != nil {
		return models.Tick{}, fmt.Errorf("inquire price %s: %w", code, err)
	}
	if resp.RtCd != "0" {
		return models.Tick{}, fmt.Errorf("inquire price %s: upstream %s %s", code, resp.MsgCd, strings.TrimSpace(resp.Msg1))
	}

	o := resp.Output
	price := util.ParseFloatDefault(o.Price, 0)
	if price <= 0 {
		return models.Tick{}, fmt.Errorf("inquire price %s: no price", code)
	}
	return models.Tick{
		Code:             code,
		Price:            price,
		ChangePrice:      signed(o.Sign, util.ParseFloatDefault(o.Change, 0)),
		ChangeRate:       signed(o.Sign, util.ParseFloatDefault(o.ChangeRate, 0)),
		CumulativeVolume: util.ParseInt64Default(o.Volume, 0),
		TradeTime:        util.InKST(time.Now()).Format("150405"),
	}, nil
}
