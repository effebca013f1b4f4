// Package endpoint parses absolute http URLs into the target of a request.
package endpoint

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
)

// scheme "://" host [":" port] [path ["?" query]] ["#" fragment]
var urlPattern = regexp.MustCompile(`^((?i:https?))://([^/ :?#]+):?([^/ ?#]*)(/?[^ #?]*)\??([^ #]*)#?([^ ]*)$`)

// Endpoint is the resolved target of one request attempt. It is a value type;
// a redirect produces a new Endpoint instead of mutating the old one.
type Endpoint struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	Query    string
	Fragment string
}

// Parse decomposes raw into an Endpoint. The port defaults to 80 for http and
// 443 for https. Non-ASCII hosts are converted to their IDNA form.
func Parse(raw string) (Endpoint, error) {
	m := urlPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Endpoint{}, errors.NewParseError(raw)
	}

	ep := Endpoint{
		Scheme:   strings.ToLower(m[1]),
		Path:     m[4],
		Query:    m[5],
		Fragment: m[6],
	}

	host, err := normalizeHost(m[2])
	if err != nil {
		return Endpoint{}, errors.NewParseError(raw)
	}
	ep.Host = host

	ep.Port = DefaultPort(ep.Scheme)
	if m[3] != "" {
		port, err := strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, errors.NewParseError(raw)
		}
		ep.Port = port
	}
	return ep, nil
}

// DefaultPort returns the well-known port of scheme.
func DefaultPort(scheme string) int {
	if scheme == "https" {
		return constants.DefaultTLSPort
	}
	return constants.DefaultPort
}

func normalizeHost(host string) (string, error) {
	for i := 0; i < len(host); i++ {
		if host[i] >= utf8.RuneSelf {
			return idna.Lookup.ToASCII(host)
		}
	}
	return strings.ToLower(host), nil
}

// RequestURI returns path and query as they go on the request line.
func (e Endpoint) RequestURI() string {
	p := e.Path
	if p == "" {
		p = "/"
	}
	if e.Query != "" {
		return p + "?" + e.Query
	}
	return p
}

// HostHeader returns the Host header value, which carries the port only when
// it differs from the scheme default.
func (e Endpoint) HostHeader() string {
	if e.Port == 0 || e.Port == DefaultPort(e.Scheme) {
		return e.Host
	}
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// String renders the endpoint back into URL form, without the fragment.
func (e Endpoint) String() string {
	return e.Scheme + "://" + e.HostHeader() + e.RequestURI()
}

// Resolve interprets a Location value relative to e. Absolute URLs are parsed
// as-is, "/..." replaces path and query, and anything else is joined to the
// directory of the current path.
func (e Endpoint) Resolve(location string) (Endpoint, error) {
	location = strings.TrimSpace(location)
	lower := strings.ToLower(location)
	switch {
	case location == "":
		return Endpoint{}, errors.NewParseError(location)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return Parse(location)
	case strings.HasPrefix(location, "//"):
		return Parse(e.Scheme + ":" + location)
	}

	ref := location
	if !strings.HasPrefix(ref, "/") {
		base := e.RequestPath()
		ref = base[:strings.LastIndex(base, "/")+1] + ref
	}
	return Parse(e.Scheme + "://" + e.HostHeader() + ref)
}

// RequestPath returns the path, defaulting to "/".
func (e Endpoint) RequestPath() string {
	if e.Path == "" {
		return "/"
	}
	return e.Path
}
