package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/WhileEndless/go-sahttp/pkg/buffer"
	"github.com/WhileEndless/go-sahttp/pkg/client"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		rangeSpec   string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "get URL [URL...]",
		Short: "GET one or more URLs, each over its own connection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.output != "" && len(args) > 1 {
				return fmt.Errorf("--output takes a single URL")
			}
			begin, end, hasRange, err := parseRange(rangeSpec)
			if err != nil {
				return err
			}
			var reqOpts []client.RequestOption
			if hasRange {
				reqOpts = append(reqOpts, client.WithRange(begin, end))
			}
			return a.getAll(cmd.Context(), args, concurrency, reqOpts)
		},
	}
	cmd.Flags().StringVarP(&rangeSpec, "range", "r", "", "byte range BEGIN-END")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "maximum parallel requests")
	return cmd
}

// getAll fetches every URL with an independent client. Bodies are collected
// per URL and printed in argument order once all fetches are done.
func (a *app) getAll(ctx context.Context, urls []string, concurrency int, reqOpts []client.RequestOption) error {
	results := make([]*client.Result, len(urls))
	bodies := make([]*buffer.Buffer, len(urls))
	for i := range bodies {
		bodies[i] = buffer.New(0)
		defer bodies[i].Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			c, err := client.New(gctx, u, a.clientOptions()...)
			if err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			defer c.Close()
			opts := append([]client.RequestOption{client.WithReceive(client.Collect(bodies[i]))}, reqOpts...)
			res, err := c.Get(gctx, "", opts...)
			results[i] = res
			if err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			return nil
		})
	}
	werr := g.Wait()

	for i, u := range urls {
		if results[i] == nil {
			continue
		}
		if err := a.report(u, results[i], bodies[i]); err != nil {
			return err
		}
	}
	return werr
}
