package main

import (
	"github.com/spf13/cobra"

	"github.com/WhileEndless/go-sahttp/pkg/buffer"
	"github.com/WhileEndless/go-sahttp/pkg/client"
)

func newPostCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "post URL",
		Short: "POST form data to a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := client.New(ctx, args[0], a.clientOptions()...)
			if err != nil {
				return err
			}
			defer c.Close()

			body := buffer.New(0)
			defer body.Close()
			res, err := c.Post(ctx, "", []byte(data), client.WithReceive(client.Collect(body)))
			if rerr := a.report(args[0], res, body); rerr != nil && err == nil {
				err = rerr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "form body; defaults to the URL's query string")
	return cmd
}
