package awsrt

import (
	"context"
	"net/http"
	"strings"
)

// Request is one operation call on its way to the transport.
type Request struct {
	Operation  string
	Method     string
	Path       string
	Host       string
	HostPrefix string
	Header     http.Header
	Region     string
	Protocol   ServiceProtocol
	Input      any

	// SigningName and Credentials are used by transports that sign.
	// Credentials is nil for anonymous requests.
	SigningName string
	Credentials *Credentials
}

// Middleware adjusts a request before it reaches the transport.
type Middleware interface {
	ModifyRequest(*Request) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(*Request) error

func (f MiddlewareFunc) ModifyRequest(r *Request) error { return f(r) }

// Transport executes a prepared request and decodes the response into
// output, which is nil for operations without a result. Service errors are
// reported as *APIError so the client can classify them.
type Transport interface {
	Do(ctx context.Context, req *Request, output any) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request, output any) error

func (f TransportFunc) Do(ctx context.Context, req *Request, output any) error {
	return f(ctx, req, output)
}

// bucketToken is the URI label S3 addresses buckets with.
const bucketToken = "/{Bucket}"

// S3RequestMiddleware switches bucket operations to virtual-hosted style:
// a leading bucket label moves from the path into the host prefix.
type S3RequestMiddleware struct{}

func (S3RequestMiddleware) ModifyRequest(r *Request) error {
	rest, ok := strings.CutPrefix(r.Path, bucketToken)
	if !ok || (rest != "" && rest[0] != '/' && rest[0] != '?') {
		return nil
	}
	r.HostPrefix = "{Bucket}."
	if rest == "" || rest[0] == '?' {
		rest = "/" + rest
	}
	r.Path = rest
	return nil
}

// GlacierRequestMiddleware stamps the API version header Glacier requires.
type GlacierRequestMiddleware struct {
	APIVersion string
}

func (m GlacierRequestMiddleware) ModifyRequest(r *Request) error {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set("x-amz-glacier-version", m.APIVersion)
	return nil
}
