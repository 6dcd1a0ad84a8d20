package observability

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ca-srg/slackscan/internal/config"
)

const (
	defaultServiceName    = "slackscan"
	defaultSampler        = "always_on"
	defaultExportInterval = 30 * time.Second
	serviceNameKey        = "service.name"
)

// Protocol is the OTLP wire protocol.
type Protocol string

const (
	ProtocolHTTP Protocol = "http/protobuf"
	ProtocolGRPC Protocol = "grpc"
)

// Settings are the OpenTelemetry options resolved from Config.
type Settings struct {
	Enabled            bool
	ServiceName        string
	Endpoint           string
	Protocol           Protocol
	ResourceAttributes map[string]string
	Sampler            string
	SamplerArg         float64
	ExportInterval     time.Duration
}

// SettingsFrom extracts and validates the OTEL_* portion of cfg.
func SettingsFrom(cfg *config.Config) (*Settings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil configuration")
	}

	attrs, err := parseResourceAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: OTEL_RESOURCE_ATTRIBUTES: %w", err)
	}

	s := &Settings{
		Enabled:            cfg.OTelEnabled,
		ServiceName:        strings.TrimSpace(cfg.OTelServiceName),
		Endpoint:           strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		Protocol:           Protocol(strings.ToLower(strings.TrimSpace(cfg.OTelExporterOTLPProtocol))),
		ResourceAttributes: attrs,
		Sampler:            strings.ToLower(strings.TrimSpace(cfg.OTelTracesSampler)),
		SamplerArg:         cfg.OTelTracesSamplerArg,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate fills defaults and, when export is enabled, checks the exporter target and sampler.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("observability: nil settings")
	}

	if s.ServiceName == "" {
		s.ServiceName = defaultServiceName
	}
	if s.Protocol == "" {
		s.Protocol = ProtocolHTTP
	}
	if s.Sampler == "" {
		s.Sampler = defaultSampler
	}
	if s.ExportInterval <= 0 {
		s.ExportInterval = defaultExportInterval
	}
	if s.ResourceAttributes == nil {
		s.ResourceAttributes = make(map[string]string)
	}
	if _, ok := s.ResourceAttributes[serviceNameKey]; !ok {
		s.ResourceAttributes[serviceNameKey] = s.ServiceName
	}

	if !s.Enabled {
		return nil
	}

	if s.Endpoint == "" {
		return fmt.Errorf("observability: OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED=true")
	}
	if _, err := resolveTarget(s.Endpoint, s.Protocol); err != nil {
		return err
	}

	if s.SamplerArg < 0 {
		return fmt.Errorf("observability: OTEL_TRACES_SAMPLER_ARG must be non-negative")
	}
	if s.Sampler == "traceidratio" && (s.SamplerArg <= 0 || s.SamplerArg > 1) {
		return fmt.Errorf("observability: OTEL_TRACES_SAMPLER_ARG must be in (0, 1] for traceidratio")
	}
	return nil
}

// parseResourceAttributes reads the "k1=v1,k2=v2" form used by OTEL_RESOURCE_ATTRIBUTES.
func parseResourceAttributes(input string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("resource attribute key cannot be empty")
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}

// target is a validated exporter destination.
type target struct {
	protocol Protocol
	base     *url.URL // http/protobuf
	hostPort string   // grpc
	insecure bool
}

func resolveTarget(endpoint string, protocol Protocol) (*target, error) {
	switch protocol {
	case ProtocolHTTP:
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("observability: invalid OTLP endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("observability: OTLP endpoint needs an http or https scheme for %s", protocol)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("observability: OTLP endpoint must include a host")
		}
		return &target{protocol: protocol, base: u, insecure: u.Scheme == "http"}, nil

	case ProtocolGRPC:
		if !strings.Contains(endpoint, "://") {
			if !strings.Contains(endpoint, ":") {
				return nil, fmt.Errorf("observability: OTLP gRPC endpoint should be host:port")
			}
			return &target{protocol: protocol, hostPort: endpoint, insecure: true}, nil
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("observability: invalid OTLP gRPC endpoint: %w", err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("observability: OTLP gRPC endpoint must include a host")
		}
		switch u.Scheme {
		case "http", "grpc":
			return &target{protocol: protocol, hostPort: u.Host, insecure: true}, nil
		case "https", "grpcs":
			return &target{protocol: protocol, hostPort: u.Host}, nil
		default:
			return nil, fmt.Errorf("observability: unsupported OTLP gRPC scheme %q", u.Scheme)
		}

	default:
		return nil, fmt.Errorf("observability: unsupported OTLP protocol %q", protocol)
	}
}

// signalURL returns the HTTP endpoint for one signal, appending path (e.g. /v1/traces) unless the
// configured URL already ends with it. Query strings survive.
func (t *target) signalURL(path string) string {
	u := *t.base
	trimmed := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(trimmed, path) {
		trimmed += path
	}
	u.Path = trimmed
	return u.String()
}
