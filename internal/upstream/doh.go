package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/fakeshadow/dns-proxy/internal/bootstrap"
)

const dnsMessageMIME = "application/dns-message"

// DoHUpstream proxies requests as HTTPS POSTs of the raw DNS message,
// resolving the upstream hostname through the bootstrap resolver
// rather than the system resolver.
type DoHUpstream struct {
	uri    string
	client *http.Client
}

// NewDoH parses uri (e.g. "https://dns.example.com/dns-query") and
// builds an HTTP client whose dialer resolves the host via resolver
// instead of the system DNS.
func NewDoH(uri string, resolver *bootstrap.Resolver) (*DoHUpstream, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse doh uri %q: %w", uri, err)
	}
	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		port = "443"
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			portNum := 443
			if _, err := fmt.Sscanf(port, "%d", &portNum); err != nil {
				return nil, fmt.Errorf("upstream: invalid doh port %q: %w", port, err)
			}
			addrs, err := resolver.Resolve(host, portNum)
			if err != nil {
				return nil, fmt.Errorf("upstream: bootstrap resolve %q: %w", host, err)
			}
			if len(addrs) == 0 {
				return nil, fmt.Errorf("upstream: bootstrap resolve %q: no addresses", host)
			}
			var d net.Dialer
			return d.DialContext(ctx, network, addrs[0].String())
		},
	}

	return &DoHUpstream{
		uri:    uri,
		client: &http.Client{Transport: transport},
	}, nil
}

// Proxy POSTs request as the body with the DNS-message content type
// and returns the response body verbatim on a 200 status.
func (d *DoHUpstream) Proxy(ctx context.Context, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.uri, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("upstream: build doh request: %w", err)
	}
	req.Header.Set("accept", dnsMessageMIME)
	req.Header.Set("content-type", dnsMessageMIME)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: doh request to %s: %w", d.uri, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read doh response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{
			URI:     d.uri,
			Status:  resp.StatusCode,
			Headers: resp.Header,
			Body:    string(body),
		}
	}
	return body, nil
}

// Close releases idle connections held by the HTTP client.
func (d *DoHUpstream) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
