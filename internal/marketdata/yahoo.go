package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const DefaultYahooBaseURL = "https://query2.finance.yahoo.com"

// YahooProvider reads the v8 chart endpoint. Responses are cached per
// symbol and range for ttl.
type YahooProvider struct {
	cli     *http.Client
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	cache   map[string]cachedSeries
}

type cachedSeries struct {
	points  []Point
	fetched time.Time
}

func NewYahooProvider(baseURL string) *YahooProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooProvider{
		cli:     &http.Client{Timeout: 8 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     60 * time.Second,
		now:     time.Now,
		cache:   make(map[string]cachedSeries),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *YahooProvider) HistoricalSeries(ctx context.Context, symbol string, rng Range) ([]Point, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNoData
	}
	key := symbol + "|" + rng.Period + "|" + rng.Interval

	p.mu.RLock()
	if c, ok := p.cache[key]; ok && p.now().Sub(c.fetched) < p.ttl {
		p.mu.RUnlock()
		return c.points, nil
	}
	p.mu.RUnlock()

	q := url.Values{}
	q.Set("range", rng.Period)
	q.Set("interval", rng.Interval)
	u := p.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "notes-stocks/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo http %d", resp.StatusCode)
	}

	var raw chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoData, symbol, raw.Chart.Error.Description)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	r := raw.Chart.Result[0]
	quote := r.Indicators.Quote[0]
	points := make([]Point, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			// Yahoo leaves gaps as nulls
			continue
		}
		pt := Point{Time: ts, Close: *c, Open: *c, High: *c, Low: *c}
		if v := at(quote.Open, i); v != nil {
			pt.Open = *v
		}
		if v := at(quote.High, i); v != nil {
			pt.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			pt.Low = *v
		}
		if v := at(quote.Volume, i); v != nil {
			pt.Volume = *v
		}
		points = append(points, pt)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	p.store(key, points)

	return points, nil
}

// store drops expired entries so the cache only holds series fetched within ttl.
func (p *YahooProvider) store(key string, points []Point) {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, c := range p.cache {
		if now.Sub(c.fetched) >= p.ttl {
			delete(p.cache, k)
		}
	}
	p.cache[key] = cachedSeries{points: points, fetched: now}
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}
