package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/reglet-dev/scriptnet/domain/errors"
)

func TestAddressPolicy_BlocksInternalTargets(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		reason string
	}{
		{"loopback", "127.0.0.1", "localhost"},
		{"loopback range", "127.0.0.2", "localhost"},
		{"loopback ipv6", "::1", "localhost"},
		{"private 10/8", "10.1.2.3", "private"},
		{"private 192.168/16", "192.168.1.1", "private"},
		{"private 172.16/12", "172.16.5.4", "private"},
		{"link-local", "169.254.169.254", "link-local"},
		{"multicast", "224.0.0.1", "multicast"},
		{"unspecified", "0.0.0.0", "unspecified"},
	}

	policy := &AddressPolicy{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := policy.Resolve(context.Background(), tc.host)
			require.Error(t, err)

			var tErr *domerrors.TransportError
			require.True(t, errors.As(err, &tErr))
			assert.Equal(t, domerrors.SSRFBlocked, tErr.Kind)
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestAddressPolicy_AllowsPublicIP(t *testing.T) {
	policy := &AddressPolicy{}

	ip, err := policy.Resolve(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", ip.String())
}

func TestAddressPolicy_AllowPrivate(t *testing.T) {
	policy := &AddressPolicy{AllowPrivate: true}

	ip, err := policy.Resolve(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, ip.IsLoopback())

	_, err = policy.Resolve(context.Background(), "0.0.0.0")
	assert.Error(t, err, "unspecified stays blocked even with AllowPrivate")
}

func TestAddressPolicy_Allowlist(t *testing.T) {
	policy := &AddressPolicy{Allowlist: []string{"127.0.0.0/8"}}

	_, err := policy.Resolve(context.Background(), "127.0.0.1")
	assert.NoError(t, err)
}

func TestAddressPolicy_Blocklist(t *testing.T) {
	policy := &AddressPolicy{Blocklist: []string{"8.8.8.8", "192.0.2.0/24"}}

	_, err := policy.Resolve(context.Background(), "8.8.8.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocklist")

	_, err = policy.Resolve(context.Background(), "192.0.2.50")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocklist CIDR")
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("example.com", "example.com"))
	assert.True(t, matchesPattern("api.example.com", "*.example.com"))
	assert.False(t, matchesPattern("example.com", "*.example.com"))
	assert.True(t, matchesPattern("192.168.1.1", "192.168.0.0/16"))
	assert.False(t, matchesPattern("10.0.0.1", "192.168.0.0/16"))
}
