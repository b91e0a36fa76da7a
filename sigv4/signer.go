package sigv4

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	unsignedPayload  = "UNSIGNED-PAYLOAD"

	// https://docs.aws.amazon.com/IAM/latest/UserGuide/create-signed-request.html#add-signature-to-request
	timeFormat      = "20060102T150405Z"
	shortTimeFormat = "20060102"

	defaultRegion    = "us-east-1"
	defaultS3Expires = "86400"
)

const (
	authorizationHeader = "Authorization"

	amzAlgorithmKey     = "X-Amz-Algorithm"
	amzContentSha256Key = "X-Amz-Content-Sha256"
	amzCredentialKey    = "X-Amz-Credential"
	amzDateKey          = "X-Amz-Date"
	amzExpiresKey       = "X-Amz-Expires"
	amzSecurityTokenKey = "X-Amz-Security-Token"
	amzSignatureKey     = "X-Amz-Signature"
	amzSignedHeadersKey = "X-Amz-SignedHeaders"
)

// Credentials are the AWS credentials requests are signed with. SessionToken
// is only set for temporary credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Valid reports whether both required fields are present.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ValidationError reports a request or credential field that fails
// validation before any signing work starts.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "sigv4: " + e.Reason
}

// URLParseError reports a request URL that could not be parsed.
type URLParseError struct {
	URL string
	Err error
}

func (e *URLParseError) Error() string {
	return fmt.Sprintf("sigv4: parse url %q: %s", e.URL, e.Err)
}

func (e *URLParseError) Unwrap() error {
	return e.Err
}

// Options control how a single request is signed.
type Options struct {
	// Service and Region name the credential scope. When either is empty
	// it is inferred from the request URL and headers; Region falls back
	// to us-east-1.
	Service string
	Region  string

	// Time is the signing timestamp. The zero value means the signer's
	// clock, which is the usual case outside tests.
	Time time.Time

	// SignQuery selects query-string presigning instead of the
	// Authorization header.
	SignQuery bool

	// AppendSessionToken appends X-Amz-Security-Token to the query string
	// after signing instead of including it in the signed material. Nil
	// defaults to true only for the IoT device gateway, which requires
	// the token outside the signature.
	AppendSessionToken *bool

	// AllHeaders signs every request header instead of filtering the
	// unsignable set.
	AllHeaders bool

	// SingleEncode suppresses the second percent-encoding pass on the
	// canonical path, for services that reject double-encoded paths.
	SingleEncode bool
}

// Request describes one request to sign.
type Request struct {
	// Method defaults to POST when Body is non-empty, GET otherwise.
	Method string
	// URL is required and must be absolute.
	URL string
	// Header is never mutated; the signed copy is returned.
	Header http.Header
	Body   []byte

	Options
}

// SignedRequest is the outcome of signing: the same request with either the
// Authorization header set (header mode) or the signing query parameters
// appended to the URL (query mode).
type SignedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// HTTPRequest converts the signed request for use with an http.Client.
func (r *SignedRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = r.Header
	return req, nil
}

// SignerOptions configure a Signer.
type SignerOptions struct {
	// Cache holds derived signing keys. Supplying one shares and seeds it
	// across signers; nil means a fresh private cache.
	Cache *KeyCache
	// Clock supplies signing timestamps when Options.Time is zero.
	Clock clock.Clock
}

// WithKeyCache makes the signer use (and fill) an externally owned key
// cache.
func WithKeyCache(c *KeyCache) func(*SignerOptions) {
	return func(o *SignerOptions) {
		o.Cache = c
	}
}

// WithClock overrides the signer's time source.
func WithClock(c clock.Clock) func(*SignerOptions) {
	return func(o *SignerOptions) {
		o.Clock = c
	}
}

// Signer signs requests with a fixed set of credentials. One signer reused
// across sequential requests amortizes key derivation through its cache; see
// KeyCache for the synchronization requirement.
type Signer struct {
	credentials Credentials
	cache       *KeyCache
	clock       clock.Clock
}

// New returns a Signer for the credentials. It fails with a ValidationError
// when the access key ID or secret access key is empty.
func New(creds Credentials, optFns ...func(*SignerOptions)) (*Signer, error) {
	if creds.AccessKeyID == "" {
		return nil, &ValidationError{Reason: "access key ID is required"}
	}
	if creds.SecretAccessKey == "" {
		return nil, &ValidationError{Reason: "secret access key is required"}
	}
	var opts SignerOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Signer{credentials: creds, cache: opts.Cache, clock: opts.Clock}
	if s.cache == nil {
		s.cache = NewKeyCache()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	return s, nil
}

// Sign signs the request. In header mode the returned request carries an
// Authorization header and the URL is untouched; in query mode the signing
// parameters and signature are appended to the URL query and no
// Authorization header is written.
func (s *Signer) Sign(req *Request) (*SignedRequest, error) {
	t, err := s.newTask(req)
	if err != nil {
		return nil, err
	}
	key := s.signingKey(t.datetime[:len(shortTimeFormat)], t.region, t.service)
	signature := t.signature(key)
	if t.signQuery {
		t.query.Set(amzSignatureKey, signature)
		if t.sessionToken != "" && t.appendToken {
			// Appended after signing: the token param itself is not
			// part of the signature.
			t.query.Set(amzSecurityTokenKey, t.sessionToken)
		}
		t.url.RawQuery = t.query.Encode()
	} else {
		t.header.Set(authorizationHeader, t.authHeader(s.credentials.AccessKeyID, signature))
	}
	return &SignedRequest{Method: t.method, URL: t.url, Header: t.header, Body: t.body}, nil
}

// Presign signs in query mode and returns the presigned URL. For S3 the
// X-Amz-Expires parameter defaults to one day when the caller did not set
// one.
func (s *Signer) Presign(req *Request) (*url.URL, error) {
	r := *req
	r.SignQuery = true
	signed, err := s.Sign(&r)
	if err != nil {
		return nil, err
	}
	return signed.URL, nil
}

// SignHTTP signs an existing http.Request in place, reading and restoring
// its body when one is present.
func (s *Signer) SignHTTP(r *http.Request, opts Options) error {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("read request body: %s", err)
		}
		r.Body.Close()
		body = b
		r.Body = io.NopCloser(bytes.NewReader(b))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
		r.ContentLength = int64(len(b))
	}
	signed, err := s.Sign(&Request{
		Method:  r.Method,
		URL:     r.URL.String(),
		Header:  r.Header,
		Body:    body,
		Options: opts,
	})
	if err != nil {
		return err
	}
	r.Header = signed.Header
	r.URL = signed.URL
	return nil
}

// CanonicalString returns the canonical request Sign would compute for req.
// Pin Options.Time when correlating it with a Sign call, otherwise each call
// reads the clock anew.
func (s *Signer) CanonicalString(req *Request) (string, error) {
	t, err := s.newTask(req)
	if err != nil {
		return "", err
	}
	return t.canonicalRequest(), nil
}

// StringToSign returns the string to sign Sign would compute for req.
func (s *Signer) StringToSign(req *Request) (string, error) {
	t, err := s.newTask(req)
	if err != nil {
		return "", err
	}
	return t.stringToSign(), nil
}

// signTask is the per-call signing state. newTask runs the construction
// side effects in a fixed order; everything after only reads from it.
type signTask struct {
	method       string
	url          *url.URL
	query        *queryParams
	header       http.Header
	lower        map[string][]string
	body         []byte
	service      string
	region       string
	datetime     string
	signQuery    bool
	appendToken  bool
	sessionToken string

	signedHeaders    string
	canonicalHeaders string
	credentialScope  string
	encodedPath      string
	encodedQuery     string
	hashedPayload    string
}

func (s *Signer) newTask(req *Request) (*signTask, error) {
	if req.URL == "" {
		return nil, &ValidationError{Reason: "url is required"}
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &URLParseError{URL: req.URL, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &URLParseError{URL: req.URL, Err: errors.New("not an absolute URL")}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
		if len(req.Body) > 0 {
			method = http.MethodPost
		}
	}
	method = strings.ToUpper(method)

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	service, region := req.Service, req.Region
	if service == "" || region == "" {
		guessedService, guessedRegion := InferServiceRegion(u, header)
		if service == "" {
			service = guessedService
		}
		if region == "" {
			region = guessedRegion
		}
	}
	if region == "" {
		region = defaultRegion
	}

	when := req.Time
	if when.IsZero() {
		when = s.clock.Now()
	}
	datetime := when.UTC().Format(timeFormat)

	appendToken := service == "iotdevicegateway"
	if req.AppendSessionToken != nil {
		appendToken = *req.AppendSessionToken
	}

	t := &signTask{
		method:       method,
		url:          u,
		query:        parseQuery(u.RawQuery),
		header:       header,
		body:         req.Body,
		service:      service,
		region:       region,
		datetime:     datetime,
		signQuery:    req.SignQuery,
		appendToken:  appendToken,
		sessionToken: s.credentials.SessionToken,
	}

	// Host is recomputed from the URL at transport time. Delete any casing,
	// not just the canonical key.
	for name := range header {
		if strings.EqualFold(name, "Host") {
			delete(header, name)
		}
	}
	if service == "s3" && !req.SignQuery && len(header.Values(amzContentSha256Key)) == 0 {
		header.Set(amzContentSha256Key, unsignedPayload)
	}
	if req.SignQuery {
		t.query.Set(amzDateKey, datetime)
		if t.sessionToken != "" && !appendToken {
			t.query.Set(amzSecurityTokenKey, t.sessionToken)
		}
	} else {
		header.Set(amzDateKey, datetime)
		if t.sessionToken != "" && !appendToken {
			header.Set(amzSecurityTokenKey, t.sessionToken)
		}
	}

	t.lower = lowerHeaders(header)
	names := signableHeaderNames(t.lower, req.AllHeaders)
	t.signedHeaders = strings.Join(names, ";")
	t.canonicalHeaders = canonicalHeaderBlock(names, u.Host, t.lower)
	t.credentialScope = strings.Join([]string{
		datetime[:len(shortTimeFormat)], region, service, "aws4_request",
	}, "/")

	if req.SignQuery {
		if service == "s3" && !t.query.Has(amzExpiresKey) {
			t.query.Set(amzExpiresKey, defaultS3Expires)
		}
		t.query.Set(amzAlgorithmKey, signingAlgorithm)
		t.query.Set(amzCredentialKey, s.credentials.AccessKeyID+"/"+t.credentialScope)
		t.query.Set(amzSignedHeadersKey, t.signedHeaders)
	}

	t.encodedPath = canonicalPath(u, service, req.SingleEncode)
	t.encodedQuery = canonicalQuery(t.query, service)
	t.hashedPayload = payloadHash(t.lower, service, req.SignQuery, req.Body)
	return t, nil
}

func (t *signTask) canonicalRequest() string {
	return strings.Join([]string{
		t.method,
		t.encodedPath,
		t.encodedQuery,
		t.canonicalHeaders + "\n",
		t.signedHeaders,
		t.hashedPayload,
	}, "\n")
}

func (t *signTask) stringToSign() string {
	sum := sha256.Sum256([]byte(t.canonicalRequest()))
	return strings.Join([]string{
		signingAlgorithm,
		t.datetime,
		t.credentialScope,
		hex.EncodeToString(sum[:]),
	}, "\n")
}

func (t *signTask) signature(key []byte) string {
	return hex.EncodeToString(hmacSHA256(key, t.stringToSign()))
}

func (t *signTask) authHeader(accessKeyID, signature string) string {
	return signingAlgorithm +
		" Credential=" + accessKeyID + "/" + t.credentialScope +
		", SignedHeaders=" + t.signedHeaders +
		", Signature=" + signature
}
