package cmd

import (
	"ledger-core/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port string
	c := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.App.HttpPort = port
			}
			return server.Start(*cfg)
		},
	}
	c.Flags().StringVar(&port, "port", "", "HTTP 端口，覆盖 app.http_port")
	return c
}
