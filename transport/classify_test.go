package transport

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/reglet-dev/scriptnet/domain/errors"
)

func TestClassifyTransportError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name string
		err  error
		kind domerrors.TransportKind
	}{
		{"dns", fmt.Errorf("get: %w", &net.DNSError{Err: "no such host", Name: "x.invalid", IsNotFound: true}), domerrors.DNSFailure},
		{"refused", fmt.Errorf("get: %w", refused), domerrors.ConnectionRefused},
		{"unknown authority", fmt.Errorf("get: %w", x509.UnknownAuthorityError{}), domerrors.TLSFailure},
		{"tls text", errors.New("remote error: tls: handshake failure"), domerrors.TLSFailure},
		{"other", errors.New("connection reset"), domerrors.TransportOther},
		{"already classified", &domerrors.TransportError{Kind: domerrors.SSRFBlocked, Err: errors.New("private")}, domerrors.SSRFBlocked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var tErr *domerrors.TransportError
			require.True(t, errors.As(classifyTransportError(tc.err), &tErr))
			assert.Equal(t, tc.kind, tErr.Kind)
		})
	}
}

func TestClassifyTransportError_Timeout(t *testing.T) {
	err := classifyTransportError(fmt.Errorf("dial: %w", context.DeadlineExceeded))
	assert.True(t, errors.Is(err, domerrors.ErrTimeout))
	assert.Equal(t, "connection timed out", err.Error())
}
