package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cli "go.dedis.ch/syfer/cmd"
)

func main() {
	command := &cobra.Command{
		Use: "syfer",
	}
	addCliCmd(command)
	addDaemonCmd(command)

	err := command.Execute()
	if err != nil {
		panic(err)
	}
}

// addCliCmd starts a node with the interactive console
func addCliCmd(command *cobra.Command) {
	var configPath string
	var apiAddr string

	cliCmd := &cobra.Command{
		Use:   "cli",
		Short: "Start a worker node with an interactive console",
		Long:  "Start a worker node, keep tensors for remote peers and drive computations by hand",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
			cfg, err := cli.LoadConfig(configPath)
			if err != nil {
				fmt.Println(err)
				return
			}
			cli.StartCMD(cfg, false, apiAddr)
		},
	}

	cliCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML node configuration")
	cliCmd.Flags().StringVar(&apiAddr, "api", "", "also serve the HTTP control API on this address")
	command.AddCommand(cliCmd)
}

// addDaemonCmd starts a headless node
func addDaemonCmd(command *cobra.Command) {
	var configPath string
	var apiAddr string

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start a headless worker node",
		Long:  "Start a worker node that only serves remote requests and the HTTP control API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg, err := cli.LoadConfig(configPath)
			if err != nil {
				fmt.Println(err)
				return
			}
			cli.StartCMD(cfg, true, apiAddr)
		},
	}

	daemonCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML node configuration")
	daemonCmd.Flags().StringVar(&apiAddr, "api", "127.0.0.1:8080", "serve the HTTP control API on this address")
	command.AddCommand(daemonCmd)
}
