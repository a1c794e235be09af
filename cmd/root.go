package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stratastor/horcrux/cmd/config"
	"github.com/stratastor/horcrux/cmd/domain"
	"github.com/stratastor/horcrux/cmd/health"
	"github.com/stratastor/horcrux/cmd/logs"
	"github.com/stratastor/horcrux/cmd/serve"
	"github.com/stratastor/horcrux/cmd/version"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "horcrux",
		Short: "Horcrux: StrataSTOR Node Agent",
	}

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(health.NewHealthCmd())
	rootCmd.AddCommand(domain.NewDomainCmd())
	rootCmd.AddCommand(logs.NewLogsCmd())
	rootCmd.AddCommand(config.NewConfigCmd())

	return rootCmd
}
