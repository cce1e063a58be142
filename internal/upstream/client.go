// Package upstream provides an HTTP implementation of
// timeline.UpstreamClient, talking to the external read-only timeline API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/illicitonion/timetravel/internal/timeline"
)

// Signer signs an outgoing request on behalf of creds. The OAuth 1.0a
// "three-legged" dance that produces the credentials signed here happens
// elsewhere; signing is a seam the caller plugs a concrete implementation
// into.
type Signer interface {
	Sign(req *http.Request, creds timeline.Credentials) error
}

// NoopSigner adds no authorization header. It exists for local
// development and tests against an unauthenticated fixture upstream; it
// must not be used against a real upstream that requires signed requests.
type NoopSigner struct{}

func (NoopSigner) Sign(*http.Request, timeline.Credentials) error { return nil }

// HTTPClient implements timeline.UpstreamClient against a real HTTP API.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Signer     Signer
}

// defaultRequestTimeout is used when timeout is zero, which keeps
// zero-value callers (and ad-hoc test fixtures) working without requiring
// every caller to know a sane value.
const defaultRequestTimeout = 10 * time.Second

// NewHTTPClient builds an HTTPClient with no request signing by default
// (callers supply a Signer for a real upstream). A timeout of zero falls
// back to defaultRequestTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration, signer Signer) *HTTPClient {
	if signer == nil {
		signer = NoopSigner{}
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Signer:     signer,
	}
}

type wireItem struct {
	ID string `json:"id"`
}

// UserTimeline calls the primary per-user reverse-chronological timeline
// endpoint, bounded inclusively by since/max.
func (c *HTTPClient) UserTimeline(ctx context.Context, creds timeline.Credentials, user string, since, max timeline.Snowflake) ([]timeline.Item, error) {
	u, err := url.Parse(c.BaseURL + "/statuses/user_timeline.json")
	if err != nil {
		return nil, fmt.Errorf("upstream: parse user_timeline URL: %w", err)
	}
	q := u.Query()
	q.Set("screen_name", user)
	q.Set("since_id", strconv.FormatUint(uint64(since), 10))
	q.Set("max_id", strconv.FormatUint(uint64(max), 10))
	u.RawQuery = q.Encode()

	return c.doGET(ctx, u.String(), creds)
}

// Search calls the secondary search endpoint, keyed by the interval
// converted to wall-clock minutes (YYYYMMDDHHMM, UTC) via the snowflake
// codec.
func (c *HTTPClient) Search(ctx context.Context, creds timeline.Credentials, user string, from, to timeline.Snowflake) ([]timeline.Item, error) {
	u, err := url.Parse(c.BaseURL + "/tweets/search/30day/dev.json")
	if err != nil {
		return nil, fmt.Errorf("upstream: parse search URL: %w", err)
	}
	q := u.Query()
	q.Set("query", "from:"+user)
	q.Set("fromDate", twitterTime(from))
	q.Set("toDate", twitterTime(to))
	u.RawQuery = q.Encode()

	return c.doGET(ctx, u.String(), creds)
}

func twitterTime(s timeline.Snowflake) string {
	return time.Unix(int64(timeline.SnowflakeToSeconds(s)), 0).UTC().Format("200601021504")
}

func (c *HTTPClient) doGET(ctx context.Context, rawURL string, creds timeline.Credentials) ([]timeline.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	if err := c.Signer.Sign(req, creds); err != nil {
		return nil, fmt.Errorf("upstream: sign request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream: unexpected status %d", resp.StatusCode)
	}

	var wire []wireItem
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("upstream: decode response: %w", err)
	}

	items := make([]timeline.Item, len(wire))
	for i, w := range wire {
		id, err := strconv.ParseUint(w.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("upstream: parse item id %q: %w", w.ID, err)
		}
		items[i] = timeline.Item{ID: timeline.Snowflake(id)}
	}
	return items, nil
}
