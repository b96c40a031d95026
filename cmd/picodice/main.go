// PicoDice - Dice rolling bot for chat platforms
// License: MIT
//
// Copyright (c) 2026 PicoDice contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picodice/cmd/picodice/internal"
	"github.com/sipeed/picodice/cmd/picodice/internal/console"
	"github.com/sipeed/picodice/cmd/picodice/internal/gateway"
	"github.com/sipeed/picodice/cmd/picodice/internal/mcpcmd"
	"github.com/sipeed/picodice/cmd/picodice/internal/version"
	"github.com/sipeed/picodice/pkg/config"
)

func NewPicodiceCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "picodice",
		Short: fmt.Sprintf("%s picodice - Dice rolling bot for chat platforms v%s", internal.Logo, internal.GetVersion()),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configPath != "" {
				return os.Setenv(config.EnvPicoDiceConfig, configPath)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (overrides "+config.EnvPicoDiceConfig+")")

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		console.NewConsoleCommand(),
		mcpcmd.NewMCPCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewPicodiceCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
