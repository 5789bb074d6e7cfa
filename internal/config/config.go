package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"strings"
)

// stringSlice accumulates repeated occurrences of one flag into an
// ordered slice. flag has no native repeatable-flag type; this is the
// corpus's idiom for one (append-on-Set).
type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var validLogLevels = map[string]bool{
	"error": true, "warn": true, "info": true, "debug": true, "trace": true,
}

// Parse parses args (typically os.Args[1:]) into a validated Config.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("dns-proxy", flag.ContinueOnError)

	var listen string
	fs.StringVar(&listen, "l", "0.0.0.0:53", "local UDP listen address")
	fs.StringVar(&listen, "listen", "0.0.0.0:53", "local UDP listen address")

	var upstreams stringSlice
	fs.Var(&upstreams, "u", "upstream spec, repeatable (udp IP:port, tls://host:port, https://host[:port]/path)")
	fs.Var(&upstreams, "upstream", "upstream spec, repeatable (udp IP:port, tls://host:port, https://host[:port]/path)")

	var bootstrap string
	fs.StringVar(&bootstrap, "b", "1.1.1.1:53", "bootstrap resolver for DoT/DoH host names")
	fs.StringVar(&bootstrap, "bootstrap", "1.1.1.1:53", "bootstrap resolver for DoT/DoH host names")

	var logLevel string
	fs.StringVar(&logLevel, "L", "info", "log level: error,warn,info,debug,trace")
	fs.StringVar(&logLevel, "log-level", "info", "log level: error,warn,info,debug,trace")

	var threads int
	fs.IntVar(&threads, "t", runtime.NumCPU(), "worker thread count")
	fs.IntVar(&threads, "thread", runtime.NumCPU(), "worker thread count")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if len(upstreams) == 0 {
		return nil, fmt.Errorf("config: at least one -u/--upstream is required")
	}
	if !validLogLevels[logLevel] {
		return nil, fmt.Errorf("config: invalid -L/--log-level %q", logLevel)
	}
	if threads <= 0 {
		return nil, fmt.Errorf("config: -t/--thread must be positive, got %d", threads)
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return nil, fmt.Errorf("config: invalid -l/--listen %q: %w", listen, err)
	}

	specs := make([]UpstreamSpec, 0, len(upstreams))
	for _, raw := range upstreams {
		spec, err := parseUpstreamSpec(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return &Config{
		Listen:    listen,
		Upstreams: specs,
		Bootstrap: bootstrap,
		LogLevel:  logLevel,
		Threads:   threads,
	}, nil
}

// parseUpstreamSpec implements the upstream spec grammar: tls://
// selects DoT, https:// selects DoH, anything else is a plain IP:port
// UDP upstream.
func parseUpstreamSpec(raw string) (UpstreamSpec, error) {
	switch {
	case strings.HasPrefix(raw, "tls://"):
		hostport := strings.TrimPrefix(raw, "tls://")
		host, portStr, err := net.SplitHostPort(hostport)
		if err != nil {
			return UpstreamSpec{}, fmt.Errorf("config: invalid tls upstream %q: %w", raw, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return UpstreamSpec{}, fmt.Errorf("config: invalid tls upstream port %q: %w", raw, err)
		}
		return UpstreamSpec{Kind: UpstreamDoT, Raw: raw, Host: host, Port: port}, nil

	case strings.HasPrefix(raw, "https://"):
		if _, err := url.Parse(raw); err != nil {
			return UpstreamSpec{}, fmt.Errorf("config: invalid https upstream %q: %w", raw, err)
		}
		return UpstreamSpec{Kind: UpstreamDoH, Raw: raw, URI: raw}, nil

	default:
		host, portStr, err := net.SplitHostPort(raw)
		if err != nil {
			return UpstreamSpec{}, fmt.Errorf("config: invalid udp upstream %q: %w", raw, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return UpstreamSpec{}, fmt.Errorf("config: invalid udp upstream port %q: %w", raw, err)
		}
		return UpstreamSpec{Kind: UpstreamUDP, Raw: raw, Host: host, Port: port}, nil
	}
}
