package transport

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/errors"
)

// Validate checks a request against the transport's input rules. It is pure
// and runs in full before any descriptor or network resource exists.
func Validate(rawURL, method string, body []byte, headers []entities.Header) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	if err := validateMethod(method); err != nil {
		return err
	}
	if len(body) > entities.MaxRequestBody {
		return &errors.ValidationError{
			Field:  "body",
			Kind:   errors.BodyTooLarge,
			Detail: strconv.Itoa(len(body)) + " bytes",
		}
	}
	return validateHeaders(headers)
}

func validateURL(rawURL string) error {
	if len(rawURL) > entities.MaxURLLen {
		return &errors.ValidationError{
			Field:  "url",
			Kind:   errors.URLTooLong,
			Detail: strconv.Itoa(len(rawURL)) + " bytes",
		}
	}
	for i := 0; i < len(rawURL); i++ {
		if c := rawURL[i]; isControl(c) && c != '\t' {
			return &errors.ValidationError{
				Field:  "url",
				Kind:   errors.EmbeddedControlChar,
				Detail: "byte " + strconv.Itoa(i),
			}
		}
	}

	scheme, _, found := strings.Cut(rawURL, ":")
	if !found {
		return &errors.ValidationError{Field: "url", Kind: errors.InvalidScheme, Detail: "missing scheme"}
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
	default:
		return &errors.ValidationError{Field: "url", Kind: errors.InvalidScheme, Detail: scheme}
	}

	u, err := url.Parse(EscapeTabs(rawURL))
	if err != nil {
		return &errors.ValidationError{Field: "url", Kind: errors.MalformedURL, Detail: err.Error()}
	}
	if u.Host == "" {
		return &errors.ValidationError{Field: "url", Kind: errors.MalformedURL, Detail: "missing host"}
	}
	return nil
}

// EscapeTabs percent-encodes the tabs a URL may carry so that it parses.
// Validate applies it before parsing and Client.Enqueue stores the result.
func EscapeTabs(rawURL string) string {
	return strings.ReplaceAll(rawURL, "\t", "%09")
}

func validateMethod(method string) error {
	if method == "" {
		return nil
	}
	if len(method) > entities.MaxMethodLen {
		return &errors.ValidationError{Field: "method", Kind: errors.InvalidMethod, Detail: "too long"}
	}
	for i := 0; i < len(method); i++ {
		if !isTokenChar(method[i]) {
			return &errors.ValidationError{Field: "method", Kind: errors.InvalidMethod, Detail: strconv.Quote(method)}
		}
	}
	return nil
}

func validateHeaders(headers []entities.Header) error {
	if len(headers) > entities.MaxHeaderCount {
		return &errors.ValidationError{
			Field:  "headers",
			Kind:   errors.TooManyHeaders,
			Detail: strconv.Itoa(len(headers)),
		}
	}

	total := 0
	for _, h := range headers {
		size := h.Size()
		if size > entities.MaxHeaderSize {
			return &errors.ValidationError{Field: "headers", Kind: errors.HeaderTooLarge, Detail: h.Name}
		}
		total += size
		if total > entities.MaxHeadersTotal {
			return &errors.ValidationError{
				Field:  "headers",
				Kind:   errors.HeadersTotalTooLarge,
				Detail: strconv.Itoa(total) + " bytes",
			}
		}
		if !headerTextOK(h.Name) || !headerTextOK(h.Value) {
			return &errors.ValidationError{Field: "headers", Kind: errors.EmbeddedControlChar, Detail: h.Name}
		}
	}
	return nil
}

// headerTextOK allows tab, CR and LF but no other control byte.
func headerTextOK(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isControl(c) && c != '\t' && c != '\r' && c != '\n' {
			return false
		}
	}
	return true
}

func isControl(c byte) bool {
	return c < 0x20 || c == 0x7f
}

// isTokenChar reports whether c is an RFC 7230 tchar.
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
