package trino

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

const (
	DefaultPort    = 8080
	DefaultCatalog = "hive"

	schemePlain  = "trino"
	schemeSecure = "trino+https"
)

// ConnectionSpec is the parsed form of a connection string:
//
//	trino[+https]://user[:password]@host[:port][/catalog][?key=value&...]
//
// Recognized query parameters: schema, timezone, source, client_info,
// client_tags, session_properties (key:value pairs separated by commas) and
// timeout. Others are ignored.
type ConnectionSpec struct {
	Host     string
	Port     int
	User     string
	Password string
	Catalog  string
	Secure   bool

	Schema     string
	TimeZone   string
	Source     string
	ClientInfo string
	ClientTags []string
	Timeout    time.Duration // 0 means no client-side timeout

	SessionProperties map[string]string
}

// ParseConnectionSpec percent-decodes conn and parses it. All failures match
// ErrMalformedURL.
func ParseConnectionSpec(conn string) (ConnectionSpec, error) {
	// PathUnescape keeps '+' so the secure scheme survives decoding.
	decoded, err := url.PathUnescape(conn)
	if err != nil {
		return ConnectionSpec{}, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	u, err := url.Parse(decoded)
	if err != nil {
		return ConnectionSpec{}, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}

	spec := ConnectionSpec{Port: DefaultPort, Catalog: DefaultCatalog}

	switch u.Scheme {
	case schemePlain:
	case schemeSecure:
		spec.Secure = true
	default:
		return ConnectionSpec{}, fmt.Errorf("%w: unsupported scheme %q: must be %s or %s",
			ErrMalformedURL, u.Scheme, schemePlain, schemeSecure)
	}

	spec.Host = u.Hostname()
	if spec.Host == "" {
		return ConnectionSpec{}, ErrMissingHost
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return ConnectionSpec{}, fmt.Errorf("%w: invalid port %q", ErrMalformedURL, p)
		}
		spec.Port = port
	}

	if u.User != nil {
		spec.User = u.User.Username()
		spec.Password, _ = u.User.Password()
	}
	if spec.User == "" {
		return ConnectionSpec{}, fmt.Errorf("%w: missing user", ErrMalformedURL)
	}

	// The catalog is the last non-empty path segment.
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			spec.Catalog = segments[i]
			break
		}
	}

	for key, values := range u.Query() {
		val := values[0]
		switch key {
		case "schema":
			spec.Schema = val
		case "timezone":
			spec.TimeZone = val
		case "source":
			spec.Source = val
		case "client_info":
			spec.ClientInfo = val
		case "session_properties":
			props, err := parseSessionProperties(val)
			if err != nil {
				return ConnectionSpec{}, err
			}
			spec.SessionProperties = props
		case "client_tags":
			for _, tag := range strings.Split(val, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					spec.ClientTags = append(spec.ClientTags, tag)
				}
			}
		case "timeout":
			d, err := str2duration.ParseDuration(val)
			if err != nil || d < 0 {
				return ConnectionSpec{}, fmt.Errorf("%w: invalid timeout %q", ErrMalformedURL, val)
			}
			spec.Timeout = d
		}
	}

	return spec, nil
}

func parseSessionProperties(val string) (map[string]string, error) {
	props := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: invalid session property %q: want key:value", ErrMalformedURL, pair)
		}
		props[k] = strings.TrimSpace(v)
	}
	return props, nil
}

// ServerURL returns the coordinator base URL.
func (c ConnectionSpec) ServerURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Redacted renders c as a connection string with the password masked.
func (c ConnectionSpec) Redacted() string {
	scheme := schemePlain
	if c.Secure {
		scheme = schemeSecure
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Catalog,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.Redacted()
}
