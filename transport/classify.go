package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stdErrors "errors"
	"net"
	"strings"
	"syscall"

	"github.com/reglet-dev/scriptnet/domain/errors"
)

// classifyTransportError maps a net/http failure onto the transport taxonomy.
func classifyTransportError(err error) error {
	var tErr *errors.TransportError
	if stdErrors.As(err, &tErr) {
		return tErr
	}

	var dnsErr *net.DNSError
	switch {
	case stdErrors.As(err, &dnsErr):
		return &errors.TransportError{Kind: errors.DNSFailure, Err: err}
	case stdErrors.Is(err, syscall.ECONNREFUSED):
		return &errors.TransportError{Kind: errors.ConnectionRefused, Err: err}
	case isTLSError(err):
		return &errors.TransportError{Kind: errors.TLSFailure, Err: err}
	case stdErrors.Is(err, context.DeadlineExceeded):
		return &errors.TimeoutError{Phase: errors.PhaseConnect}
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return &errors.TimeoutError{Phase: errors.PhaseConnect}
	}
	return &errors.TransportError{Kind: errors.TransportOther, Err: err}
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		authorityEr x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case stdErrors.As(err, &recordErr),
		stdErrors.As(err, &verifyErr),
		stdErrors.As(err, &authorityEr),
		stdErrors.As(err, &hostnameErr),
		stdErrors.As(err, &invalidErr):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}
