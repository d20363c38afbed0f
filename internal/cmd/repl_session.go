package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
	"github.com/reglet-dev/scriptnet/transport"
)

const replHelp = `commands:
  get|post|put|patch|delete|head|options <url> [body]
  header <name>: <value>    add a header to every following request
  headers [clear]           list or clear the headers
  stats                     transport counters
  help                      this text
  quit                      close the transport and leave`

// previewLimit caps how much of a body the REPL echoes.
const previewLimit = 512

// errQuit is returned by Exec for quit and exit.
var errQuit = errors.New("quit")

// replToken labels a REPL request in its callback.
type replToken struct {
	method string
	url    string
	seq    int
}

// replSession interprets REPL command lines against one client. Every
// method must be called from the goroutine that drives the client.
type replSession struct {
	client  *transport.Client
	out     func(string)
	headers []entities.Header
	seq     int
}

func newReplSession(a *app, out func(string), opts ...transport.Option) *replSession {
	s := &replSession{out: out}
	s.client = a.newClient(ports.InvokerFunc(s.deliver), opts...)
	return s
}

func (s *replSession) deliver(_ context.Context, token any, resp entities.Response) error {
	tok, ok := token.(replToken)
	if !ok {
		return fmt.Errorf("unexpected token %T", token)
	}
	s.out(fmt.Sprintf("<- #%d %s %s: %s", tok.seq, tok.method, tok.url, describe(resp)))
	if len(resp.Body) > 0 {
		s.out(preview(resp.Body))
	}
	return nil
}

// Tick advances the transport and delivers finished requests.
func (s *replSession) Tick(ctx context.Context) error {
	return s.client.Tick(ctx)
}

// Pending reports requests not yet delivered.
func (s *replSession) Pending() int {
	return s.client.Pending()
}

// Close fails whatever is in flight and prints those callbacks.
func (s *replSession) Close() error {
	return s.client.Close()
}

// Exec runs one command line.
func (s *replSession) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb = strings.ToLower(verb); verb {
	case "get", "post", "put", "patch", "delete", "head", "options":
		url, body, _ := strings.Cut(rest, " ")
		if url == "" {
			return fmt.Errorf("usage: %s <url> [body]", verb)
		}
		return s.send(strings.ToUpper(verb), url, strings.TrimSpace(body))

	case "header":
		h, err := parseHeader(rest)
		if err != nil {
			return err
		}
		s.headers = append(s.headers, h)
		s.out(fmt.Sprintf("header set: %s: %s", h.Name, h.Value))

	case "headers":
		if rest == "clear" {
			s.headers = nil
			s.out("headers cleared")
			return nil
		}
		if len(s.headers) == 0 {
			s.out("no headers")
		}
		for _, h := range s.headers {
			s.out(fmt.Sprintf("%s: %s", h.Name, h.Value))
		}

	case "stats":
		st := s.client.Stats()
		s.out(fmt.Sprintf("active %d/%d, accepted %d, completed %d, failed %d, rejected %d, delivered %d, rate window %d/%d",
			st.Active, st.Capacity, st.Accepted, st.Completed, st.Failed,
			st.RejectedValidation+st.RejectedRateLimit+st.RejectedSlots, st.Delivered,
			s.client.RateLimiter().Count(), entities.RateLimitMax))

	case "help", "?":
		s.out(replHelp)

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	return nil
}

func (s *replSession) send(method, url, body string) error {
	var b []byte
	if body != "" {
		b = []byte(body)
	}
	tok := replToken{method: method, url: url, seq: s.seq + 1}
	id, err := s.client.Enqueue(entities.Request{
		URL:     url,
		Method:  method,
		Headers: s.headers,
		Body:    b,
	}, tok)
	if err != nil {
		return err
	}
	s.seq = tok.seq
	s.out(fmt.Sprintf("-> #%d %s %s (id %d)", tok.seq, method, url, id))
	return nil
}

func preview(body []byte) string {
	if len(body) <= previewLimit {
		return string(body)
	}
	return fmt.Sprintf("%s... (%d more bytes)", body[:previewLimit], len(body)-previewLimit)
}
