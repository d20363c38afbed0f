package transport

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptnet/domain/entities"
	domerrors "github.com/reglet-dev/scriptnet/domain/errors"
)

func urlOfLength(n int) string {
	const prefix = "https://x/"
	return prefix + strings.Repeat("a", n-len(prefix))
}

func headers(n int, size int) []entities.Header {
	out := make([]entities.Header, n)
	for i := range out {
		// "H: " + value
		out[i] = entities.Header{Name: "H", Value: strings.Repeat("v", size-3)}
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		method  string
		body    []byte
		headers []entities.Header
		want    domerrors.ValidationKind
	}{
		{name: "https ok", url: "https://x"},
		{name: "http ok", url: "http://example.com/path?q=1"},
		{name: "uppercase scheme ok", url: "HTTPS://example.com"},
		{name: "file scheme", url: "file:///etc/passwd", want: domerrors.InvalidScheme},
		{name: "ftp scheme", url: "ftp://example.com", want: domerrors.InvalidScheme},
		{name: "no scheme", url: "example.com", want: domerrors.InvalidScheme},
		{name: "missing host", url: "http:///path", want: domerrors.MalformedURL},
		{name: "url at limit", url: urlOfLength(2048)},
		{name: "url over limit", url: urlOfLength(2049), want: domerrors.URLTooLong},
		{name: "nul in url", url: "https://x/\x00", want: domerrors.EmbeddedControlChar},
		{name: "newline in url", url: "https://x/a\nb", want: domerrors.EmbeddedControlChar},
		{name: "del in url", url: "https://x/\x7f", want: domerrors.EmbeddedControlChar},
		{name: "tab in url", url: "https://x/a\tb?q=\t"},
		{name: "tab in host", url: "https://x\ty/", want: domerrors.MalformedURL},
		{name: "custom method", url: "https://x", method: "PROPFIND"},
		{name: "method with space", url: "https://x", method: "GE T", want: domerrors.InvalidMethod},
		{name: "method too long", url: "https://x", method: strings.Repeat("A", 17), want: domerrors.InvalidMethod},
		{name: "body at limit", url: "https://x", body: make([]byte, entities.MaxRequestBody)},
		{name: "body over limit", url: "https://x", body: make([]byte, entities.MaxRequestBody+1), want: domerrors.BodyTooLarge},
		{name: "100 headers", url: "https://x", headers: headers(100, 10)},
		{name: "101 headers", url: "https://x", headers: headers(101, 10), want: domerrors.TooManyHeaders},
		{name: "header at 1KiB", url: "https://x", headers: headers(1, 1024)},
		{name: "header over 1KiB", url: "https://x", headers: headers(1, 1025), want: domerrors.HeaderTooLarge},
		{name: "headers total at 8KiB", url: "https://x", headers: headers(8, 1024)},
		{name: "headers total over 8KiB", url: "https://x", headers: headers(9, 1024), want: domerrors.HeadersTotalTooLarge},
		{
			name:    "header with tab and crlf",
			url:     "https://x",
			headers: []entities.Header{{Name: "X-A", Value: "a\tb\r\nc"}},
		},
		{
			name:    "header with nul",
			url:     "https://x",
			headers: []entities.Header{{Name: "X-A", Value: "a\x00b"}},
			want:    domerrors.EmbeddedControlChar,
		},
		{
			name:    "header name with escape",
			url:     "https://x",
			headers: []entities.Header{{Name: "X-\x1b", Value: "v"}},
			want:    domerrors.EmbeddedControlChar,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.url, tc.method, tc.body, tc.headers)
			if tc.want == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, domerrors.ErrValidation))
			var vErr *domerrors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.want, vErr.Kind)
		})
	}
}

func TestEscapeTabs(t *testing.T) {
	assert.Equal(t, "https://x/a%09b", EscapeTabs("https://x/a\tb"))
	assert.Equal(t, "https://x/", EscapeTabs("https://x/"))
}

func TestValidate_ChecksURLBeforeBody(t *testing.T) {
	err := Validate("file:///x", "GET", make([]byte, entities.MaxRequestBody+1), nil)

	var vErr *domerrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, domerrors.InvalidScheme, vErr.Kind)
}
