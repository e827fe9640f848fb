package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maisonguida/chatbot/internal/layout"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "setup creates the data, logs and config directories of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Setting up directory structure...")
		entries, err := layout.Setup(root)
		for _, e := range entries {
			switch {
			case e.Err != nil:
				fmt.Fprintf(out, "Error creating directory %s: %v\n", e.Path, e.Err)
			case e.Created:
				fmt.Fprintf(out, "Created directory: %s\n", e.Path)
			default:
				fmt.Fprintf(out, "Directory already exists: %s\n", e.Path)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Directory setup complete!")
		return nil
	},
}
