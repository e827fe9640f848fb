package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var flagDumpConfig bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a chatbot",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(out, "chatbot: version info not available")
			return nil
		}

		if configPath != "" {
			fmt.Fprintf(out, "config:  %s\n", configPath)
		}
		fmt.Fprintf(out, "chatbot: %s\n", info.Main.Version)
		fmt.Fprintf(out, "go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(out, "commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(out, "date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(out, "dirty:   %s\n", s.Value)
			}
		}
		fmt.Fprintln(out)

		if !flagDumpConfig {
			return nil
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(config); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	versionCmd.Flags().BoolVar(&flagDumpConfig, "dump-config", false, "print the effective configuration")
}
