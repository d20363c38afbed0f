package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
	"github.com/reglet-dev/scriptnet/transport"
)

// userAgent is the configured User-Agent or scriptnet/<version>.
func (a *app) userAgent() string {
	if a.cfg.Network.UserAgent != "" {
		return a.cfg.Network.UserAgent
	}
	return transport.DefaultUserAgent + "/" + versionInfo.Version
}

// addressPolicy builds the SSRF policy from the network config. It backs the
// pinned dialer when protection is on and the ssrf_check host function always.
func (a *app) addressPolicy() *transport.AddressPolicy {
	return &transport.AddressPolicy{
		AllowPrivate: a.cfg.Network.AllowPrivate,
		Allowlist:    a.cfg.Network.Allowlist,
		Blocklist:    a.cfg.Network.Blocklist,
	}
}

func (a *app) httpOptions() []transport.HTTPOption {
	opts := []transport.HTTPOption{
		transport.WithUserAgent(a.userAgent()),
		transport.WithMaxRedirects(a.cfg.Network.MaxRedirects),
	}
	if a.cfg.Network.SSRFProtection {
		opts = append(opts, transport.WithAddressPolicy(a.addressPolicy()))
	}
	return opts
}

func (a *app) transportOptions() []transport.Option {
	return []transport.Option{
		transport.WithLogger(a.logger),
		transport.WithHTTPOptions(a.httpOptions()...),
	}
}

func (a *app) newClient(invoker ports.Invoker, extra ...transport.Option) *transport.Client {
	return transport.NewClient(invoker, append(a.transportOptions(), extra...)...)
}

// parseHeader splits "Name: value".
func parseHeader(s string) (entities.Header, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return entities.Header{}, fmt.Errorf("invalid header %q, want \"Name: value\"", s)
	}
	return entities.Header{Name: name, Value: strings.TrimSpace(value)}, nil
}

func parseHeaders(raw []string) ([]entities.Header, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make([]entities.Header, 0, len(raw))
	for _, h := range raw {
		hdr, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		headers = append(headers, hdr)
	}
	return headers, nil
}

// readBody returns data, or the contents of the file it names with "@path".
func readBody(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(data, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return b, nil
	}
	return []byte(data), nil
}

// describe renders a response as one short line.
func describe(resp entities.Response) string {
	if resp.Error != nil && resp.Status == 0 {
		return "error: " + *resp.Error
	}
	line := fmt.Sprintf("%d (%d bytes)", resp.Status, len(resp.Body))
	if resp.Error != nil {
		line += " " + *resp.Error
	}
	return line
}
