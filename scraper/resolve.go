package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	tls2 "github.com/refraction-networking/utls"
)

// shortLinkHost is the share-link domain the mobile apps emit. Following
// its redirect with a default Go TLS fingerprint gets flagged, so the
// resolver presents a Chrome ClientHello via utls.
const shortLinkHost = "xhslink.com"

// linkResolver expands share links to canonical note URLs before any
// browser navigation.
type linkResolver struct {
	proxy     string
	userAgent string
}

func newLinkResolver(proxy, userAgent string) *linkResolver {
	return &linkResolver{proxy: proxy, userAgent: userAgent}
}

// Resolve follows a share link to its final URL. Non-share-link URLs pass
// through untouched.
func (r *linkResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("resolve: parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host != shortLinkHost && !strings.HasSuffix(host, "."+shortLinkHost) {
		return rawURL, nil
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return r.dialTLSChrome(ctx, network, addr)
		},
	}
	if r.proxy != "" {
		if proxyURL, err := url.Parse(r.proxy); err == nil &&
			(proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("resolve: build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	final := resp.Request.URL
	if final == nil || strings.EqualFold(final.Hostname(), shortLinkHost) {
		return "", fmt.Errorf("resolve: share link %s did not redirect", rawURL)
	}
	return final.String(), nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func (r *linkResolver) dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	var rawConn net.Conn
	var err error

	dialer := &net.Dialer{}

	if r.proxy != "" {
		if proxyURL, parseErr := url.Parse(r.proxy); parseErr == nil &&
			(proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			socksConn, socksErr := dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if socksErr != nil {
				return nil, fmt.Errorf("socks5 dial: %w", socksErr)
			}
			rawConn = socksConn
		}
	}

	if rawConn == nil {
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
