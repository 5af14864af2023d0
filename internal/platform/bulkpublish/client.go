// Package bulkpublish loads scheduling resources from a SMART Scheduling
// Links $bulk-publish manifest and the NDJSON files it lists.
package bulkpublish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/slotcal/internal/domain/availability"
	"github.com/ehr/slotcal/internal/platform/fhir"
)

// Manifest is the $bulk-publish document.
type Manifest struct {
	TransactionTime string   `json:"transactionTime"`
	Request         string   `json:"request"`
	Output          []Output `json:"output"`
}

// Output is one NDJSON file listed in a manifest.
type Output struct {
	Type      string          `json:"type"`
	URL       string          `json:"url"`
	Extension json.RawMessage `json:"extension,omitempty"`
}

// Config controls where and how the manifest is fetched.
type Config struct {
	ManifestURL string
	// RewriteFrom/RewriteTo replace a substring in every file URL, for
	// publishers whose manifest points at a moved repository.
	RewriteFrom string
	RewriteTo   string
	Timeout     time.Duration
	Concurrency int
}

// Client implements availability.Source over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

var _ availability.Source = (*Client)(nil)

// NewClient returns a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// FetchManifest downloads and decodes the manifest.
func (c *Client) FetchManifest(ctx context.Context) (*Manifest, error) {
	body, err := c.get(ctx, c.cfg.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer body.Close()

	var m Manifest
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// URLsByType returns the (rewritten) file URLs of one resource type in
// manifest order.
func (c *Client) URLsByType(m *Manifest, resourceType string) []string {
	if m == nil {
		return nil
	}
	var urls []string
	for _, out := range m.Output {
		if out.Type != resourceType {
			continue
		}
		urls = append(urls, c.rewrite(out.URL))
	}
	return urls
}

func (c *Client) rewrite(u string) string {
	if c.cfg.RewriteFrom == "" {
		return u
	}
	return strings.ReplaceAll(u, c.cfg.RewriteFrom, c.cfg.RewriteTo)
}

// Load fetches the manifest and every PractitionerRole, Schedule and Slot
// file. A file that cannot be fetched contributes no records; only a
// manifest failure fails the load.
func (c *Client) Load(ctx context.Context) (*availability.Dataset, error) {
	m, err := c.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	var (
		practitioners []fhir.PractitionerRole
		schedules     []fhir.Schedule
		slots         []fhir.Slot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		practitioners = fetchAll[fhir.PractitionerRole](gctx, c, c.URLsByType(m, "PractitionerRole"))
		return nil
	})
	g.Go(func() error {
		schedules = fetchAll[fhir.Schedule](gctx, c, c.URLsByType(m, "Schedule"))
		return nil
	})
	g.Go(func() error {
		slots = fetchAll[fhir.Slot](gctx, c, c.URLsByType(m, "Slot"))
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return availability.NewDataset(practitioners, schedules, slots), nil
}

// fetchAll downloads urls with bounded concurrency and concatenates their
// records in url order.
func fetchAll[T any](ctx context.Context, c *Client, urls []string) []T {
	parts := make([][]T, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			recs, err := fetchNDJSON[T](gctx, c, u)
			if err != nil {
				c.logger.Error().Err(err).Str("url", u).Msg("failed to fetch ndjson file")
				return nil
			}
			parts[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var out []T
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func fetchNDJSON[T any](ctx context.Context, c *Client, u string) ([]T, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	recs, bad, err := fhir.DecodeNDJSON[T](body)
	for _, le := range bad {
		c.logger.Warn().Err(le.Err).Str("url", u).Int("line", le.Line).Msg("skipping undecodable ndjson line")
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+ndjson, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		return nil, fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}
	return resp.Body, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	body.Close()
}
