package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const (
	defaultBaseURL = "https://export.arxiv.org/api/query"
	defaultDelay   = 3 * time.Second
	defaultRetries = 3
	maxBackoff     = 30 * time.Second
)

var ErrUnexpectedStatus = errors.New("arxiv: unexpected status")

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://export.arxiv.org/api/query"`
	Delay   time.Duration `envconfig:"DELAY" split_words:"true" default:"3s"`
	Retries int           `envconfig:"RETRIES" split_words:"true" default:"3"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SortBy  string        `envconfig:"SORT_BY" split_words:"true" default:"relevance"`
}

// Client queries the arXiv Atom API. Requests are spaced by Delay, which is
// the interval arXiv asks API consumers to keep between calls.
type Client struct {
	baseURL string
	retries int
	sortBy  string
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = defaultRetries
	}
	delay := cfg.Delay
	if delay < 0 {
		delay = defaultDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sortBy := strings.TrimSpace(cfg.SortBy)
	if sortBy == "" {
		sortBy = "relevance"
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	c := &Client{
		baseURL: base,
		retries: retries,
		sortBy:  sortBy,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID      string   `xml:"id"`
	Title   string   `xml:"title"`
	Summary string   `xml:"summary"`
	Authors []author `xml:"author"`
	Links   []link   `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// Search returns up to maxResults documents for the query. Document text is
// the article abstract.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]contractx.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: arxiv query is empty", contractx.ErrValidation)
	}
	if maxResults <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", c.sortBy)
	params.Set("sortOrder", "descending")
	endpoint := c.baseURL + "?" + params.Encode()

	body, err := c.fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("arxiv: decode feed: %w", err)
	}

	docs := make([]contractx.Document, 0, len(f.Entries))
	for _, e := range f.Entries {
		docs = append(docs, e.document())
		if len(docs) >= maxResults {
			break
		}
	}
	log.Debug().Str("query", query).Int("results", len(docs)).Msg("arxiv search complete")
	return docs, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	delay := time.Second
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/atom+xml")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("arxiv: request: %w", err)
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable
		if retryable && attempt < c.retries {
			resp.Body.Close()
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Dur("delay", delay).Msg("arxiv throttled, backing off")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			if delay < maxBackoff {
				delay *= 2
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("arxiv: read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: http %d", ErrUnexpectedStatus, resp.StatusCode)
		}
		return body, nil
	}
}

func (e entry) document() contractx.Document {
	doc := contractx.Document{
		ID:    strings.TrimSpace(e.ID),
		Title: collapse(e.Title),
		Text:  collapse(e.Summary),
		URL:   strings.TrimSpace(e.ID),
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			doc.Authors = append(doc.Authors, name)
		}
	}
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			doc.URL = l.Href
			break
		}
	}
	return doc
}

// collapse folds the hard line wraps arXiv puts into titles and abstracts.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
