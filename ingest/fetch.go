package ingest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// defaultMaxFetchSize caps remote document size.
const defaultMaxFetchSize = 10 << 20 // 10 MB

// fetchUserAgent identifies the service to remote hosts.
const fetchUserAgent = "plainterms/1.0 (+document analysis)"

// Fetcher retrieves remote documents over HTTPS with SSRF protections:
// https only, no localhost or private addresses, DNS results validated
// before connecting.
type Fetcher struct {
	client  *http.Client
	maxSize int64
	parsers *Registry
}

// NewFetcher creates a web fetcher backed by the given parser registry.
func NewFetcher(timeout time.Duration, parsers *Registry) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	// Validate resolved IPs at dial time to prevent DNS rebinding.
	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}

		for _, ipAddr := range ips {
			if isPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		var lastErr error
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("no reachable address for %s: %w", host, lastErr)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: safeDialContext,
			},
		},
		maxSize: defaultMaxFetchSize,
		parsers: parsers,
	}
}

// ValidateURL rejects URLs this service must not fetch.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("local hostnames are not allowed")
	}

	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}

	return nil
}

// isPrivateIP reports whether ip is in a private, loopback, or otherwise
// non-routable range.
func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// FetchText downloads a remote document and extracts its text. HTML pages go
// through readability extraction so navigation chrome does not pollute the
// document text; other content types go through the parser registry.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		return f.extractReadable(body, rawURL)
	}

	return f.parsers.ExtractText(rawURL, contentType, body)
}

// extractReadable pulls the main content out of an HTML page.
func (f *Fetcher) extractReadable(body []byte, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		// Readability gives up on sparse pages; fall back to full conversion.
		return f.parsers.ExtractText(rawURL, "text/html", body)
	}

	return article.TextContent, nil
}
