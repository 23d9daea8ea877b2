package awsrt

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPTransport executes JSON and REST-JSON requests over HTTP. Requests
// carrying credentials are signed with Signature Version 4. Connection
// errors and 5xx responses are retried.
type HTTPTransport struct {
	client *retryablehttp.Client
	signer *v4.Signer
	now    func() time.Time
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client.HTTPClient = c }
}

// WithMaxRetries sets how often a failed attempt is retried.
func WithMaxRetries(n int) HTTPOption {
	return func(t *HTTPTransport) { t.client.RetryMax = n }
}

// WithRetryWait bounds the backoff between attempts.
func WithRetryWait(minWait, maxWait time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		t.client.RetryWaitMin = minWait
		t.client.RetryWaitMax = maxWait
	}
}

// WithHTTPLogger routes retry logging to l.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) { t.client.Logger = leveledSlog{inner: l} }
}

// WithClock fixes the signing time.
func WithClock(now func() time.Time) HTTPOption {
	return func(t *HTTPTransport) { t.now = now }
}

// NewHTTPTransport returns a transport with three retries.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = leveledSlog{inner: slog.Default().With("subsystem", "awsrt")}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	t := &HTTPTransport{client: rc, signer: v4.NewSigner(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// leveledSlog downgrades retry errors to warnings.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, kv ...any) { l.inner.Warn(msg, kv...) }
func (l leveledSlog) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l leveledSlog) Info(msg string, kv ...any)  { l.inner.Debug(msg, kv...) }
func (l leveledSlog) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request, output any) error {
	switch req.Protocol.Type {
	case ProtocolJSON, ProtocolRESTJSON:
	default:
		return fmt.Errorf("awsrt: protocol %s is not supported over HTTP", req.Protocol)
	}

	in, err := splitInput(req.Input)
	if err != nil {
		return err
	}
	u, err := in.url(req)
	if err != nil {
		return err
	}
	body, err := in.body(req.Protocol.Type)
	if err != nil {
		return err
	}

	hr, err := retryablehttp.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return fmt.Errorf("awsrt: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	for k, v := range in.headers {
		hr.Header.Set(k, v)
	}
	if err := t.sign(ctx, req, hr.Request, body); err != nil {
		return err
	}

	resp, err := t.client.Do(hr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("awsrt: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp, data)
	}
	if output == nil {
		return nil
	}
	return decodeOutput(resp, data, output)
}

func (t *HTTPTransport) sign(ctx context.Context, req *Request, hr *http.Request, body []byte) error {
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	hr.Header.Set("X-Amz-Content-Sha256", hash)
	if req.Credentials == nil {
		return nil
	}
	creds := aws.Credentials{
		AccessKeyID:     req.Credentials.AccessKeyID,
		SecretAccessKey: req.Credentials.SecretAccessKey,
		SessionToken:    req.Credentials.SessionToken,
	}
	if err := t.signer.SignHTTP(ctx, creds, hr, hash, req.SigningName, req.Region, t.now()); err != nil {
		return fmt.Errorf("awsrt: sign request: %w", err)
	}
	return nil
}

// boundInput is a serialized input split by wire location.
type boundInput struct {
	fields  map[string]json.RawMessage
	members []ShapeMember
	labels  map[string]string
	query   url.Values
	headers map[string]string
	payload *ShapeMember
}

func splitInput(input any) (*boundInput, error) {
	in := &boundInput{
		fields:  map[string]json.RawMessage{},
		labels:  map[string]string{},
		query:   url.Values{},
		headers: map[string]string{},
	}
	if input == nil {
		return in, nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("awsrt: encode input: %w", err)
	}
	if err := json.Unmarshal(raw, &in.fields); err != nil {
		return nil, fmt.Errorf("awsrt: input is not an object: %w", err)
	}
	s, ok := input.(Shape)
	if !ok {
		return in, nil
	}
	in.members = s.ShapeMembers()
	payload := ""
	if p, ok := input.(PayloadShape); ok {
		payload = p.PayloadPath()
	}
	for i, m := range in.members {
		if m.Label == payload {
			in.payload = &in.members[i]
		}
		value, present := in.fields[m.WireName()]
		if !present || m.Location.Kind == LocationBody {
			continue
		}
		delete(in.fields, m.WireName())
		if err := in.bind(m, value); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *boundInput) bind(m ShapeMember, value json.RawMessage) error {
	switch m.Location.Kind {
	case LocationURI:
		in.labels[m.WireName()] = scalar(value)
	case LocationQueryString:
		switch m.Type {
		case TypeList:
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil {
				return fmt.Errorf("awsrt: query member %s: %w", m.Label, err)
			}
			for _, item := range items {
				in.query.Add(m.WireName(), scalar(item))
			}
		case TypeMap:
			var entries map[string]json.RawMessage
			if err := json.Unmarshal(value, &entries); err != nil {
				return fmt.Errorf("awsrt: query member %s: %w", m.Label, err)
			}
			for k, v := range entries {
				in.query.Set(k, scalar(v))
			}
		default:
			in.query.Set(m.WireName(), scalar(value))
		}
	case LocationHeader:
		if m.Type == TypeMap {
			var entries map[string]json.RawMessage
			if err := json.Unmarshal(value, &entries); err != nil {
				return fmt.Errorf("awsrt: header member %s: %w", m.Label, err)
			}
			for k, v := range entries {
				in.headers[m.WireName()+k] = scalar(v)
			}
			return nil
		}
		in.headers[m.WireName()] = scalar(value)
	}
	return nil
}

// url expands URI labels in the host prefix and path and appends the query.
func (in *boundInput) url(req *Request) (*url.URL, error) {
	base := req.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("awsrt: endpoint %q: %w", req.Host, err)
	}
	u.Host = in.expand(req.HostPrefix, false) + u.Host

	path, rawQuery, _ := strings.Cut(req.Path, "?")
	rawPath := strings.TrimSuffix(u.EscapedPath(), "/") + in.expand(path, true)
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("awsrt: path %q: %w", rawPath, err)
	}
	u.Path, u.RawPath = decoded, rawPath

	q := url.Values{}
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		q.Add(k, v)
	}
	for k, vs := range in.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// expand substitutes {Label} and greedy {Label+} placeholders.
func (in *boundInput) expand(tmpl string, escape bool) string {
	for name, value := range in.labels {
		greedy, plain := value, value
		if escape {
			plain = url.PathEscape(value)
			parts := strings.Split(value, "/")
			for i, p := range parts {
				parts[i] = url.PathEscape(p)
			}
			greedy = strings.Join(parts, "/")
		}
		tmpl = strings.ReplaceAll(tmpl, "{"+name+"+}", greedy)
		tmpl = strings.ReplaceAll(tmpl, "{"+name+"}", plain)
	}
	return tmpl
}

func (in *boundInput) body(protocol ProtocolType) ([]byte, error) {
	if in.payload != nil {
		value, ok := in.fields[in.payload.WireName()]
		if !ok || string(value) == "null" {
			return nil, nil
		}
		switch in.payload.Type {
		case TypeBlob:
			var b []byte
			if err := json.Unmarshal(value, &b); err != nil {
				return nil, fmt.Errorf("awsrt: payload %s: %w", in.payload.Label, err)
			}
			return b, nil
		case TypeString:
			return []byte(scalar(value)), nil
		}
		return value, nil
	}
	if protocol == ProtocolRESTJSON && len(in.fields) == 0 {
		return nil, nil
	}
	return json.Marshal(in.fields)
}

// scalar renders a JSON scalar the way it travels in a header, label or
// query value.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func decodeError(resp *http.Response, data []byte) error {
	var body struct {
		Type     string  `json:"__type"`
		Code     string  `json:"code"`
		Message  *string `json:"message"`
		MessageU *string `json:"Message"`
	}
	_ = json.Unmarshal(data, &body)

	code := resp.Header.Get("X-Amzn-ErrorType")
	if code == "" {
		code = body.Type
	}
	if code == "" {
		code = body.Code
	}
	if i := strings.IndexByte(code, ':'); i >= 0 {
		code = code[:i]
	}
	if code == "" {
		code = http.StatusText(resp.StatusCode)
	}
	msg := body.Message
	if msg == nil {
		msg = body.MessageU
	}
	return &APIError{Code: code, Message: msg, StatusCode: resp.StatusCode}
}

func decodeOutput(resp *http.Response, data []byte, output any) error {
	fields := map[string]json.RawMessage{}
	s, isShape := output.(Shape)
	payload := ""
	if p, ok := output.(PayloadShape); ok {
		payload = p.PayloadPath()
	}
	if payload == "" && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("awsrt: decode response: %w", err)
		}
	}
	if isShape {
		for _, m := range s.ShapeMembers() {
			switch {
			case m.Label == payload:
				fields[m.WireName()] = payloadValue(m, data)
			case m.Location.Kind == LocationHeader && m.Type != TypeMap:
				if v := resp.Header.Get(m.WireName()); v != "" {
					fields[m.WireName()] = headerValue(m, v)
				}
			}
		}
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, output); err != nil {
		return fmt.Errorf("awsrt: decode response: %w", err)
	}
	return nil
}

func payloadValue(m ShapeMember, data []byte) json.RawMessage {
	switch m.Type {
	case TypeBlob:
		return quote(base64.StdEncoding.EncodeToString(data))
	case TypeString:
		return quote(string(data))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}

func headerValue(m ShapeMember, v string) json.RawMessage {
	switch m.Type {
	case TypeInteger, TypeLong, TypeFloat, TypeDouble, TypeBoolean:
		if json.Valid([]byte(v)) {
			return json.RawMessage(v)
		}
	case TypeTimestamp:
		if ts, err := http.ParseTime(v); err == nil {
			return quote(ts.UTC().Format(time.RFC3339))
		}
	}
	return quote(v)
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
