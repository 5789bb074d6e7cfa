// Package config parses the forwarder's command-line flags into a
// Config consumed by App.Run. There is no config file and no
// environment-variable layer: every setting is a flag, mirroring the
// original Rust bpaf CLI this forwarder is modeled on.
package config

// UpstreamKind distinguishes the three protocols an upstream spec can
// select.
type UpstreamKind int

const (
	UpstreamUDP UpstreamKind = iota
	UpstreamDoT
	UpstreamDoH
)

// UpstreamSpec is one parsed -u/--upstream value.
type UpstreamSpec struct {
	Kind UpstreamKind
	Raw  string // original spec string, for logging

	// UDP and DoT
	Host string
	Port int

	// DoH only
	URI string
}

// Config is the fully parsed, validated set of flags the forwarder
// runs with.
type Config struct {
	Listen    string
	Upstreams []UpstreamSpec
	Bootstrap string
	LogLevel  string
	Threads   int
}
