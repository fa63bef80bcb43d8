// CLAUDE:SUMMARY HTTP GET of one URL with a random User-Agent and no TLS verification; returns the page <title> or a sentinel failure title.
// Package resolve fetches a page and extracts its <title>.
//
// Failures never escape Resolve: they are folded into the returned
// Resolution as sentinel titles, so one unreachable domain does not abort a
// run.
package resolve

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/hazyhaar/domfinder/domfinder/internal/pick"
	"github.com/hazyhaar/domfinder/horosafe"
)

// Sentinel titles.
const (
	TitleUnavailable      = "Title not available"
	TitleConnectionFailed = "Failed to establish a connection to the domain"
)

// DefaultUserAgents is the pool a User-Agent is drawn from per request.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36",
	"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:54.0) Gecko/20100101 Firefox/54.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_6) AppleWebKit/537.36 (KHTML, like Gecko) Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/61.0.3163.91 Safari/537.36",
	"Mozilla/5.0 (Windows NT 6.1; WOW64; Trident/7.0; AS; rv:11.0) like Gecko",
}

// Config configures the resolver.
type Config struct {
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`             // per request. Default: 30s.
	MaxBytes     int64         `json:"max_bytes" yaml:"max_bytes"`         // body cap. Default: horosafe.MaxResponseBody.
	MaxRedirects int           `json:"max_redirects" yaml:"max_redirects"` // Default: 10.
	UserAgents   []string      `json:"user_agents" yaml:"user_agents"`     // Default: DefaultUserAgents.
	// BlockPrivate rejects URLs resolving to private or loopback addresses.
	BlockPrivate bool `json:"block_private" yaml:"block_private"`

	// URLValidator runs before the request and on every redirect.
	// Default: horosafe.ValidateScheme, or horosafe.ValidateURL with BlockPrivate.
	URLValidator func(string) error `json:"-" yaml:"-"`
	// DialContext overrides the TCP dialer (tests).
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error) `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 10
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateScheme
		if c.BlockPrivate {
			c.URLValidator = horosafe.ValidateURL
		}
	}
	if c.DialContext == nil {
		c.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	}
}

// Resolution is the outcome of resolving one URL. On success URL is the
// final URL after redirects. On a DNS failure it is the requested URL; on
// any other failure it carries the error message instead of a URL.
type Resolution struct {
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Status   int           `json:"status,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"-"`
}

// Failed reports whether the fetch itself failed.
func (r Resolution) Failed() bool { return r.Err != nil }

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	kind := "Client"
	if e.Code >= 500 {
		kind = "Server"
	}
	return fmt.Sprintf("%d %s Error: %s for url: %s", e.Code, kind, http.StatusText(e.Code), e.URL)
}

// Resolver performs title lookups. Safe for concurrent use when its Source is.
type Resolver struct {
	client *http.Client
	config Config
	rnd    pick.Source
}

// New creates a Resolver. rnd picks the User-Agent; nil uses a time-seeded source.
func New(cfg Config, rnd pick.Source) *Resolver {
	cfg.defaults()
	if rnd == nil {
		rnd = pick.NewTimeSeeded()
	}
	validate := cfg.URLValidator
	maxRedirects := cfg.MaxRedirects

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           cfg.DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // titles only, certificate errors must not hide them
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Resolver{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("exceeded %d redirects", maxRedirects)
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
		rnd:    rnd,
	}
}

// Resolve fetches rawURL and returns its title. It never returns an error;
// see Resolution for how failures are reported.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Resolution {
	start := time.Now()
	res := r.resolve(ctx, rawURL)
	res.Duration = time.Since(start)
	return res
}

func (r *Resolver) resolve(ctx context.Context, rawURL string) Resolution {
	if err := r.config.URLValidator(rawURL); err != nil {
		return failure(rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return failure(rawURL, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", pick.One(r.rnd, r.config.UserAgents))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return failure(rawURL, err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if resp.StatusCode >= 400 {
		res := failure(rawURL, &StatusError{Code: resp.StatusCode, URL: finalURL})
		res.Status = resp.StatusCode
		return res
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, r.config.MaxBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return failure(rawURL, fmt.Errorf("decode body: %w", err))
	}
	title, err := Title(body)
	if err != nil {
		return failure(rawURL, err)
	}
	if title == "" {
		title = TitleUnavailable
	}
	return Resolution{Title: title, URL: finalURL, Status: resp.StatusCode}
}

func failure(rawURL string, err error) Resolution {
	if IsDNSError(err) {
		return Resolution{Title: TitleConnectionFailed, URL: rawURL, Err: err}
	}
	return Resolution{Title: TitleUnavailable, URL: err.Error(), Err: err}
}

// IsDNSError reports whether err stems from a failed name resolution.
func IsDNSError(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "getaddrinfo failed") || strings.Contains(msg, "no such host")
}

// Title parses an HTML document and returns the whitespace-normalised text of
// its first <title> element, or "" when there is none.
func Title(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	n := findTitle(doc)
	if n == nil {
		return "", nil
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " "), nil
}

// findTitle returns the first HTML-namespace <title> element (svg titles are skipped).
func findTitle(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.Namespace == "" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != nil {
			return t
		}
	}
	return nil
}
