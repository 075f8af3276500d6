package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/config"
)

// dialTimeout bounds each certificate probe so an unreachable target cannot
// stall a status-API request indefinitely.
const dialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate presented by one HTTPS target.
type CertStatus struct {
	TargetID string `json:"target_id"`
	Endpoint string `json:"endpoint"`

	// Status is one of: valid | expiring | expired | unreachable.
	Status   string `json:"status"`
	DaysLeft int    `json:"days_left"`
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"`
}

// Check dials the TLS endpoint of the given target and returns a CertStatus
// describing its leaf certificate.
//
// Returns nil for non-HTTPS targets — there is no certificate to inspect.
func Check(ctx context.Context, target config.Target) *CertStatus {
	u, err := url.Parse(target.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{
		TargetID: target.ID,
		Endpoint: target.Endpoint,
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		// No explicit port in the URL — append the HTTPS default.
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: target.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := time.Until(leaf.NotAfter).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = "expired"
	case daysLeft <= 30:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}

	return cs
}
