package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/adamwoolhether/trickle/client"
	"github.com/adamwoolhether/trickle/config"
	"github.com/adamwoolhether/trickle/metrics"
	"github.com/adamwoolhether/trickle/receiver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// headerFlags collects repeated -header "Name: value" flags.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q must look like \"Name: value\"", value)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(val)
	return nil
}

func runSend(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: trickle send [flags] [file|-]")
		fs.PrintDefaults()
	}

	headers := headerFlags{}
	var (
		configPath  = fs.String("config", "", "path to a YAML config file")
		rawURL      = fs.String("url", "", "target URL")
		method      = fs.String("method", "", "HTTP method (POST, PUT or PATCH)")
		cps         = fs.Float64("cps", 0, "characters per second")
		chunk       = fs.Int("chunk", 0, "characters per chunk, derived from -cps when 0")
		contentType = fs.String("content-type", "", "Content-Type header")
		user        = fs.String("user", "", "basic auth as user:password")
		progress    = fs.Bool("progress", false, "log progress while sending")
		timeout     = fs.Duration("timeout", 0, "overall request timeout")
		metricsAddr = fs.String("metrics-addr", "", "serve Prometheus metrics on this address while sending")
		expect      = fs.Int("expect", 0, "required response status, any 2xx when 0")
		report      = fs.Bool("report", false, "decode the response as a 'trickle listen' report and summarize it")
	)
	fs.Var(headers, "header", "extra request header as \"Name: value\", repeatable")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return errUsage
	}
	if *expect != 0 && (*expect < 100 || *expect > 599) {
		fmt.Fprintf(stderr, "invalid -expect %d: not an HTTP status\n", *expect)
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.URL = *rawURL
		case "method":
			cfg.Method = strings.ToUpper(*method)
		case "cps":
			cfg.CharsPerSecond = *cps
		case "chunk":
			cfg.ChunkSize = *chunk
		case "content-type":
			cfg.ContentType = *contentType
		case "user":
			cfg.Username, cfg.Password, _ = strings.Cut(*user, ":")
		case "progress":
			cfg.Progress = *progress
		case "timeout":
			cfg.Timeout = *timeout
		}
	})
	if len(headers) > 0 && cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for k, v := range headers {
		cfg.Headers[k] = v
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.RequireURL(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	payload, err := readPayload(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	log := cfg.Log.NewLogger(stderr)

	reg := prometheus.NewRegistry()
	opts := []client.Option{
		client.WithLogger(log),
		client.WithTimeout(cfg.Timeout),
		client.WithUserAgent(cfg.UserAgent),
		client.WithMetrics(metrics.New(reg)),
	}
	if cfg.Progress {
		opts = append(opts, client.WithProgress())
	}
	if cfg.ThrottleEnabled() {
		opts = append(opts, client.WithThrottleConfig(cfg.ThrottleConfig()))
	}
	if cfg.RequestIDHeader != "" {
		opts = append(opts, client.WithRequestID(cfg.RequestIDHeader))
	}

	c, err := client.Build(opts...)
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		srv := receiver.NewServer(mux, receiver.WithAddr(*metricsAddr), receiver.WithServerLogger(log), receiver.WithShutdownTimeout(time.Second))

		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := srv.Run(metricsCtx); err != nil {
				log.Error("metrics server", "error", err)
			}
		}()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}

	var reqOpts []client.RequestOption
	if cfg.ContentType != "" {
		reqOpts = append(reqOpts, client.WithContentType(cfg.ContentType))
	}
	if len(cfg.Headers) > 0 {
		h := make(map[string][]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			h[k] = []string{v}
		}
		reqOpts = append(reqOpts, client.WithHeaders(h))
	}
	if cfg.Username != "" {
		reqOpts = append(reqOpts, client.WithBasicAuth(cfg.Username, cfg.Password))
	}

	resp, err := c.Stream(ctx, u, cfg.Method, payload, cfg.Pace(), reqOpts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Fprintln(stdout, resp.Status)

	var rep receiver.Report
	doOpt := client.WithBodyWriter(stdout)
	if *report {
		doOpt = client.WithDestination(&rep)
	}

	if err := c.Expect(resp, *expect, doOpt); err != nil {
		statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err)
		if !ok {
			return fmt.Errorf("reading response: %w", err)
		}

		fmt.Fprint(stdout, statusErr.Body)
		if errors.Is(err, client.ErrAuthFailure) {
			fmt.Fprintln(stderr, "trickle: authentication failed, check -user or the config credentials")
		}
		return exitStatusError(1)
	}

	if *report {
		fmt.Fprintf(stdout, "chars=%d reads=%d elapsed=%dms cps=%.1f chunked=%t overrun=%t\n",
			rep.Chars, rep.Reads, rep.ElapsedMS, rep.CharsPerSecond, rep.Chunked, rep.Overrun)
	}

	return nil
}

func readPayload(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading payload: %w", err)
	}

	return string(b), nil
}
