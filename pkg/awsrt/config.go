package awsrt

import "log/slog"

// Credentials sign requests.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Config is what a generated constructor hands to NewClient. Options
// applied afterwards override it.
type Config struct {
	AmzTarget         string
	Service           string
	Protocol          ServiceProtocol
	APIVersion        string
	ServiceEndpoints  map[string]string
	PartitionEndpoint string
	Middlewares       []Middleware
	ErrorClassifiers  []ErrorClassifier

	Credentials *Credentials
	Region      string
	Endpoint    string
	Transport   Transport
	Logger      *slog.Logger
}

// Option overrides part of a Config.
type Option func(*Config)

// WithCredentials sets the credentials used to sign requests.
func WithCredentials(c Credentials) Option {
	return func(cfg *Config) { cfg.Credentials = &c }
}

// WithRegion sets the region requests are sent to.
func WithRegion(region string) Option {
	return func(cfg *Config) { cfg.Region = region }
}

// WithEndpoint replaces endpoint resolution with a fixed host or URL.
func WithEndpoint(endpoint string) Option {
	return func(cfg *Config) { cfg.Endpoint = endpoint }
}

// WithTransport sets the transport that executes requests.
func WithTransport(t Transport) Option {
	return func(cfg *Config) { cfg.Transport = t }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) { cfg.Logger = l }
}

// WithMiddleware appends a request middleware.
func WithMiddleware(m Middleware) Option {
	return func(cfg *Config) { cfg.Middlewares = append(cfg.Middlewares, m) }
}
