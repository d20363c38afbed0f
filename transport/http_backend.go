package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
)

// DefaultUserAgent is sent when the script did not set a User-Agent header.
const DefaultUserAgent = "scriptnet"

const (
	defaultChunkSize   = 32 * 1024
	defaultEventBuffer = 16
)

// HTTPOption is a functional option for configuring the HTTP backend.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	tlsConfig    *tls.Config
	policy       *AddressPolicy
	userAgent    string
	maxRedirects int
	chunkSize    int
}

func defaultHTTPConfig() httpConfig {
	return httpConfig{
		maxRedirects: 10,
		userAgent:    DefaultUserAgent,
		chunkSize:    defaultChunkSize,
	}
}

// WithSSRFProtection resolves every target once, validates the address with
// an AddressPolicy and dials exactly that address, which also defeats DNS
// rebinding. Private and loopback targets are refused unless allowPrivate.
func WithSSRFProtection(allowPrivate bool) HTTPOption {
	return func(c *httpConfig) {
		c.policy = &AddressPolicy{AllowPrivate: allowPrivate}
	}
}

// WithAddressPolicy installs a custom SSRF policy.
func WithAddressPolicy(p *AddressPolicy) HTTPOption {
	return func(c *httpConfig) {
		c.policy = p
	}
}

// WithUserAgent sets the default User-Agent. An empty string sends none.
func WithUserAgent(ua string) HTTPOption {
	return func(c *httpConfig) {
		c.userAgent = ua
	}
}

// WithMaxRedirects sets the maximum number of redirects to follow.
// Zero disables redirects; negative values are ignored.
func WithMaxRedirects(n int) HTTPOption {
	return func(c *httpConfig) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithTLSConfig sets a custom TLS configuration.
func WithTLSConfig(cfg *tls.Config) HTTPOption {
	return func(c *httpConfig) {
		c.tlsConfig = cfg
	}
}

// HTTPBackend runs transfers on net/http. Each transfer gets one goroutine
// whose socket waits are multiplexed by the runtime netpoller; the goroutine
// only publishes events and never touches transport state.
type HTTPBackend struct {
	client *http.Client
	cfg    httpConfig
}

// NewHTTPBackend creates the default backend.
func NewHTTPBackend(opts ...HTTPOption) *HTTPBackend {
	cfg := defaultHTTPConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HTTPBackend{client: createHTTPClient(cfg), cfg: cfg}
}

// createHTTPClient builds the client. There is no client timeout: the engine
// enforces connect and total deadlines and aborts the transfer itself.
func createHTTPClient(cfg httpConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   entities.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          entities.MaxConcurrent,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   entities.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       cfg.tlsConfig,
	}

	if cfg.policy != nil {
		// A proxy would dial on our behalf and bypass the policy.
		transport.Proxy = nil
		transport.DialContext = pinnedDialer(dialer, cfg.policy)
	}

	client := &http.Client{Transport: transport}
	if cfg.maxRedirects == 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.maxRedirects)
			}
			return nil
		}
	}
	return client
}

// pinnedDialer validates the target through policy and connects to the
// resolved address. TLS still verifies against the URL hostname because
// http.Transport performs the handshake with the original host.
func pinnedDialer(dialer *net.Dialer, policy *AddressPolicy) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ip, err := policy.Resolve(ctx, host)
		if err != nil {
			return nil, err
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
	}
}

// Start implements ports.Backend. It builds the request and launches the
// transfer goroutine; it never waits on the network.
func (b *HTTPBackend) Start(req ports.TransferRequest) (ports.Transfer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &httpTransfer{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan ports.TransferEvent, defaultEventBuffer),
	}

	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			t.emit(ports.TransferEvent{Kind: ports.EventConnected})
		},
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), strings.ToUpper(req.Method), req.URL, body)
	if err != nil {
		cancel()
		return nil, err
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}
	if httpReq.Header.Get("User-Agent") == "" && b.cfg.userAgent != "" {
		httpReq.Header.Set("User-Agent", b.cfg.userAgent)
	}

	go t.run(b.client, httpReq, b.cfg.chunkSize)
	return t, nil
}

// httpTransfer is the handle for one net/http transfer.
type httpTransfer struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan ports.TransferEvent
}

func (t *httpTransfer) Events() <-chan ports.TransferEvent {
	return t.events
}

func (t *httpTransfer) Abort() {
	t.cancel()
}

// emit publishes ev unless the transfer was aborted first.
func (t *httpTransfer) emit(ev ports.TransferEvent) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}

func (t *httpTransfer) run(client *http.Client, req *http.Request, chunkSize int) {
	defer close(t.events)

	resp, err := client.Do(req)
	if err != nil {
		t.emit(ports.TransferEvent{Kind: ports.EventFailed, Err: classifyTransportError(err)})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if !t.emit(ports.TransferEvent{Kind: ports.EventStatus, Status: resp.StatusCode}) {
		return
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !t.emit(ports.TransferEvent{Kind: ports.EventChunk, Data: chunk}) {
				return
			}
		}
		if readErr == io.EOF {
			t.emit(ports.TransferEvent{Kind: ports.EventDone})
			return
		}
		if readErr != nil {
			t.emit(ports.TransferEvent{Kind: ports.EventFailed, Err: classifyTransportError(readErr)})
			return
		}
	}
}
