package sigv4

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// unsignableHeaders are left out of the signed-header set unless
// Options.AllHeaders is set, since intermediaries may rewrite them in
// transit.
var unsignableHeaders = map[string]bool{
	"authorization":     true,
	"connection":        true,
	"content-length":    true,
	"content-type":      true,
	"expect":            true,
	"presigned-expires": true,
	"range":             true,
	"user-agent":        true,
	"x-amzn-trace-id":   true,
}

type queryParam struct {
	key   string
	value string
}

// queryParams holds decoded query parameters in source order. The canonical
// query string depends on source order and duplicate positions, which
// url.Values cannot represent.
type queryParams struct {
	params []queryParam
}

// parseQuery splits a raw query string into decoded key/value pairs,
// preserving order and duplicates. A "+" decodes to a space and malformed
// percent escapes are kept as literal text.
func parseQuery(rawQuery string) *queryParams {
	q := &queryParams{}
	for _, segment := range strings.Split(rawQuery, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		q.params = append(q.params, queryParam{
			key:   decodeQueryComponent(key),
			value: decodeQueryComponent(value),
		})
	}
	return q
}

func decodeQueryComponent(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && unhex(s[i+1]) >= 0 && unhex(s[i+2]) >= 0:
			b.WriteByte(byte(unhex(s[i+1])<<4 | unhex(s[i+2])))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Set replaces the first occurrence of key in place and drops any later
// occurrences, or appends when key is absent.
func (q *queryParams) Set(key, value string) {
	out := q.params[:0]
	replaced := false
	for _, p := range q.params {
		if p.key == key {
			if replaced {
				continue
			}
			p.value = value
			replaced = true
		}
		out = append(out, p)
	}
	q.params = out
	if !replaced {
		q.params = append(q.params, queryParam{key: key, value: value})
	}
}

func (q *queryParams) Has(key string) bool {
	for _, p := range q.params {
		if p.key == key {
			return true
		}
	}
	return false
}

// Encode serializes the parameters for a request URL, keeping source order.
func (q *queryParams) Encode() string {
	var b strings.Builder
	for i, p := range q.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// canonicalPath builds the canonical URI. S3 object keys may arrive already
// percent-encoded, so for S3 the path is decoded once first, falling back to
// the raw path when it does not decode. Other services collapse repeated
// slashes. Unless singleEncode is set the result is re-encoded with path
// separators restored, then the strict RFC 3986 pass runs either way.
// https://docs.aws.amazon.com/IAM/latest/UserGuide/create-signed-request.html
func canonicalPath(u *url.URL, service string, singleEncode bool) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if service == "s3" {
		if decoded, err := PercentDecode(strings.ReplaceAll(path, "+", " ")); err == nil {
			path = decoded
		}
	} else {
		path = collapseSlashes(path)
	}
	if !singleEncode {
		path = strings.ReplaceAll(uriEncode(path), "%2F", "/")
	}
	return encodeRFC3986(path)
}

func collapseSlashes(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

// canonicalQuery builds the canonical query string: empty keys are dropped,
// S3 signs only the first occurrence of a repeated key, and the pairs are
// sorted by their fully encoded key=value form.
func canonicalQuery(q *queryParams, service string) string {
	seen := make(map[string]bool, len(q.params))
	pairs := make([]string, 0, len(q.params))
	for _, p := range q.params {
		if p.key == "" {
			continue
		}
		if service == "s3" {
			if seen[p.key] {
				continue
			}
			seen[p.key] = true
		}
		pairs = append(pairs, encodeRFC3986(uriEncode(p.key))+"="+encodeRFC3986(uriEncode(p.value)))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// lowerHeaders regroups header values under lowercase names.
func lowerHeaders(header http.Header) map[string][]string {
	m := make(map[string][]string, len(header))
	for name, values := range header {
		lower := strings.ToLower(name)
		m[lower] = append(m[lower], values...)
	}
	return m
}

// signableHeaderNames returns the sorted signed-header set: host plus every
// request header name, minus the unsignable set when allHeaders is false.
func signableHeaderNames(lower map[string][]string, allHeaders bool) []string {
	names := make([]string, 0, len(lower)+1)
	names = append(names, "host")
	for name := range lower {
		if name == "host" {
			continue
		}
		if !allHeaders && unsignableHeaders[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// canonicalHeaderBlock renders the name:value lines for the signed headers
// in order. The host line comes from the URL authority; multi-valued headers
// join with commas and whitespace runs collapse to single spaces.
func canonicalHeaderBlock(names []string, hostport string, lower map[string][]string) string {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		value := hostport
		if name != "host" {
			value = collapseSpaces(strings.Join(lower[name], ","))
		}
		lines = append(lines, name+":"+value)
	}
	return strings.Join(lines, "\n")
}

// collapseSpaces trims s and squeezes interior whitespace runs to one space.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ' ', '\t', '\n', '\r':
			pending = b.Len() > 0
		default:
			if pending {
				b.WriteByte(' ')
				pending = false
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// payloadHash resolves the canonical payload hash: an explicit
// X-Amz-Content-Sha256 header wins, S3 query signing uses the
// UNSIGNED-PAYLOAD sentinel, and anything else hashes the body, present or
// not.
func payloadHash(lower map[string][]string, service string, signQuery bool, body []byte) string {
	if values, ok := lower["x-amz-content-sha256"]; ok && len(values) > 0 {
		return values[0]
	}
	if service == "s3" && signQuery {
		return unsignedPayload
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
