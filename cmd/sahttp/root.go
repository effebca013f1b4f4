package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WhileEndless/go-sahttp/pkg/buffer"
	"github.com/WhileEndless/go-sahttp/pkg/client"
	"github.com/WhileEndless/go-sahttp/pkg/config"
	"github.com/WhileEndless/go-sahttp/pkg/log"
)

type rootFlags struct {
	configFile string
	verbose    bool
	jsonLog    bool
	include    bool
	output     string
}

type app struct {
	flags  rootFlags
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	cmd := &cobra.Command{
		Use:           "sahttp",
		Short:         "Minimal HTTP/1.1 client over raw TCP sockets",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.flags.configFile, "config", "c", "", "YAML or TOML config file")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug diagnostics")
	pf.BoolVar(&a.flags.jsonLog, "json-log", false, "log in JSON")
	pf.BoolVarP(&a.flags.include, "include", "i", false, "print the response header block")
	pf.StringVarP(&a.flags.output, "output", "o", "", "write the body to this file instead of stdout")

	cmd.AddCommand(newGetCmd(a), newPostCmd(a))
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.flags.configFile)
	if err != nil {
		return err
	}
	if a.flags.verbose {
		cfg.Log.Level = "debug"
	}
	if a.flags.jsonLog {
		cfg.Log.JSON = true
	}
	a.cfg = cfg
	a.logger = cfg.Logger(log.WithWriter(a.stderr))
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) clientOptions() []client.Option {
	return append(a.cfg.Options(), client.WithLogger(a.logger))
}

// report prints the outcome of one exchange and copies its collected body out.
func (a *app) report(rawURL string, res *client.Result, body *buffer.Buffer) error {
	fmt.Fprintf(a.stderr, "%s -> %s %d (%d/%d bytes, %d redirects)\n",
		rawURL, res.URL, res.Status, res.ContentCurrent, res.ContentTotal, res.Redirects)
	if res.Chunked {
		fmt.Fprintln(a.stderr, "note: chunked body, written still chunk-framed")
	}
	if res.Failure != nil {
		fmt.Fprintf(a.stderr, "failure: %v\n", res.Failure)
	}
	if a.flags.include && res.Headers != "" {
		fmt.Fprintf(a.stdout, "%s\r\n\r\n", res.Headers)
	}

	out := a.stdout
	if a.flags.output != "" {
		f, err := os.Create(a.flags.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	r, err := body.Reader()
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(out, r)
	return err
}

func parseRange(s string) (uint64, uint64, bool, error) {
	if s == "" {
		return 0, 0, false, nil
	}
	b, e, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, false, fmt.Errorf("range %q must look like BEGIN-END", s)
	}
	begin, err := strconv.ParseUint(strings.TrimSpace(b), 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("range begin: %w", err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(e), 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("range end: %w", err)
	}
	return begin, end, true, nil
}
