package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
	"github.com/reglet-dev/scriptnet/transport"
)

// batchFile is the YAML document read by the batch command.
type batchFile struct {
	Requests []batchRequest `yaml:"requests"`
}

type batchRequest struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Method  string   `yaml:"method"`
	Body    string   `yaml:"body"`
	Headers []string `yaml:"headers"`
}

// batchResult is one row of the batch report.
type batchResult struct {
	Name     string        `json:"name"`
	Method   string        `json:"method"`
	URL      string        `json:"url"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Status   int           `json:"status,omitempty"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration_ns"`
	started  time.Time
}

const (
	outcomeOK       = "ok"
	outcomeHTTP     = "http_error"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

type batchReport struct {
	Results []*batchResult  `json:"results"`
	Stats   transport.Stats `json:"stats"`
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		format    string
		showStats bool
	)
	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Run every request in a YAML file concurrently",
		Long: `Enqueue every request listed in the file, drive the transport until all
callbacks have fired and print one row per request. Requests past the
concurrency ceiling or the rate limit are reported as rejected.

File format:

  requests:
    - name: health
      url: https://example.com/health
      method: GET
      headers: ["Accept: application/json"]
      body: ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown output format %q", format)
			}
			reqs, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			report, err := a.runBatch(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return renderBatch(cmd.OutOrStdout(), report, format, showStats)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print transport counters after the results")
	return cmd
}

func readBatchFile(path string) ([]batchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file batchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(file.Requests) == 0 {
		return nil, errors.New("no requests found in batch file")
	}
	return file.Requests, nil
}

// runBatch enqueues reqs in order on one client and polls until every
// accepted request has been delivered.
func (a *app) runBatch(ctx context.Context, reqs []batchRequest) (*batchReport, error) {
	results := make([]*batchResult, len(reqs))

	client := a.newClient(ports.InvokerFunc(func(_ context.Context, token any, resp entities.Response) error {
		r := results[token.(int)]
		r.Duration = time.Since(r.started)
		r.Status = resp.Status
		r.Bytes = len(resp.Body)
		switch {
		case resp.Error != nil && resp.Status == 0:
			r.Outcome = outcomeFailed
			r.Error = *resp.Error
		case resp.Error != nil:
			r.Outcome = outcomeHTTP
			r.Error = *resp.Error
		default:
			r.Outcome = outcomeOK
		}
		return nil
	}))
	defer func() { _ = client.Close() }()

	for i, req := range reqs {
		name := req.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		method := strings.ToUpper(req.Method)
		if method == "" {
			method = "GET"
		}
		r := &batchResult{Name: name, Method: method, URL: req.URL, started: time.Now()}
		results[i] = r

		headers, err := parseHeaders(req.Headers)
		if err != nil {
			r.Outcome = outcomeRejected
			r.Error = err.Error()
			continue
		}
		var body []byte
		if req.Body != "" {
			body = []byte(req.Body)
		}
		if _, err := client.Enqueue(entities.Request{
			URL:     req.URL,
			Method:  method,
			Headers: headers,
			Body:    body,
		}, i); err != nil {
			r.Outcome = outcomeRejected
			r.Error = err.Error()
		}
	}

	if err := client.RunUntilIdle(ctx, a.cfg.Batch.Tick); err != nil {
		return nil, err
	}
	return &batchReport{Results: results, Stats: client.Stats()}, nil
}

func renderBatch(w io.Writer, report *batchReport, format string, showStats bool) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Method", "URL", "Outcome", "Status", "Bytes", "Duration", "Error"})
	counts := map[string]int{}
	for _, r := range report.Results {
		counts[r.Outcome]++
		status := ""
		if r.Status != 0 {
			status = fmt.Sprint(r.Status)
		}
		t.AppendRow(table.Row{
			r.Name,
			r.Method,
			r.URL,
			r.Outcome,
			status,
			r.Bytes,
			r.Duration.Round(time.Millisecond),
			r.Error,
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d requests", len(report.Results)),
		"", "",
		fmt.Sprintf("%d ok / %d http / %d failed / %d rejected",
			counts[outcomeOK], counts[outcomeHTTP], counts[outcomeFailed], counts[outcomeRejected]),
	})
	t.Render()

	if showStats {
		renderStats(w, report.Stats)
	}
	return nil
}

func renderStats(w io.Writer, s transport.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Counter", "Value"})
	t.AppendRows([]table.Row{
		{"accepted", s.Accepted},
		{"rejected (validation)", s.RejectedValidation},
		{"rejected (rate limit)", s.RejectedRateLimit},
		{"rejected (slots)", s.RejectedSlots},
		{"completed", s.Completed},
		{"failed", s.Failed},
		{"delivered", s.Delivered},
		{"invoke errors", s.InvokeErrors},
		{"outstanding", s.Outstanding()},
		{"active / capacity", fmt.Sprintf("%d / %d", s.Active, s.Capacity)},
	})
	t.Render()
}
