package connection

import (
	"errors"
	"net/url"
	"strings"
)

// SSLMode is the libpq sslmode value, or SSLOmit to leave the parameter out.
type SSLMode string

const (
	SSLOmit       SSLMode = "omit"
	SSLDisable    SSLMode = "disable"
	SSLRequire    SSLMode = "require"
	SSLVerifyCA   SSLMode = "verify-ca"
	SSLVerifyFull SSLMode = "verify-full"
)

// HostRewriter maps a direct endpoint host to its pooled counterpart.
type HostRewriter interface {
	PooledHost(host, endpointID string) string
}

// PoolerSuffix inserts "-pooler" after the endpoint id segment of the host.
// It relies on the id appearing verbatim in the hostname.
type PoolerSuffix struct{}

func (PoolerSuffix) PooledHost(host, endpointID string) string {
	if endpointID == "" {
		return host
	}
	return strings.Replace(host, endpointID, endpointID+"-pooler", 1)
}

// Builder assembles postgresql:// connection URIs.
type Builder struct {
	rewriter HostRewriter
}

// NewBuilder returns a Builder. A nil rewriter defaults to PoolerSuffix.
func NewBuilder(rewriter HostRewriter) Builder {
	if rewriter == nil {
		rewriter = PoolerSuffix{}
	}
	return Builder{rewriter: rewriter}
}

// Build composes the URI. SSLOmit emits no query string; any other mode, empty
// included, is passed through as sslmode.
func (b Builder) Build(host, endpointID, role, password, database string, pooled bool, ssl SSLMode) (string, error) {
	if strings.TrimSpace(host) == "" {
		return "", errors.New("endpoint host required")
	}
	if role == "" {
		return "", errors.New("role required")
	}
	if database == "" {
		return "", errors.New("database required")
	}
	if pooled {
		rewriter := b.rewriter
		if rewriter == nil {
			rewriter = PoolerSuffix{}
		}
		host = rewriter.PooledHost(host, endpointID)
	}
	u := &url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(role, password),
		Host:   host,
		Path:   "/" + database,
	}
	if ssl != SSLOmit {
		u.RawQuery = url.Values{"sslmode": {string(ssl)}}.Encode()
	}
	return u.String(), nil
}
