package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"FinFusion/internal/domain/service"
	xhttp "FinFusion/pkg/http"
)

type sectorSentimentResponse struct {
	Sector    string  `json:"sector"`
	Sentiment float64 `json:"sentiment"`
	Articles  int     `json:"articles"`
}

// HTTPSentimentProvider reads sector sentiment from the news service.
type HTTPSentimentProvider struct {
	baseURL string
	client  *xhttp.Client
}

func NewHTTPSentimentProvider(baseURL string, timeout time.Duration, retries int) *HTTPSentimentProvider {
	if timeout <= 0 {
		timeout = 700 * time.Millisecond
	}
	return &HTTPSentimentProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithRetries(retries, 50*time.Millisecond),
		),
	}
}

func (p *HTTPSentimentProvider) SectorSentiment(ctx context.Context, sector string) (float64, error) {
	if p.baseURL == "" {
		return 0, fmt.Errorf("sentiment service url not configured")
	}
	var resp sectorSentimentResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + "/sentiment/sector/" + url.PathEscape(sector),
		Headers: map[string]string{"Accept": "application/json"},
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("get sector sentiment %s: %w", sector, err)
	}
	// no articles in the window reads as neutral
	if resp.Articles == 0 && resp.Sentiment == 0 {
		return 0, nil
	}
	if resp.Sentiment < -1 || resp.Sentiment > 1 {
		return 0, fmt.Errorf("sentiment %.3f for %s out of range", resp.Sentiment, sector)
	}
	return resp.Sentiment, nil
}

var _ service.SentimentProvider = (*HTTPSentimentProvider)(nil)
