package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dockerbridge/internal/engine"
)

func newBuildCommand(app *cliApp) *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "build <context-dir>",
		Args:  cobra.ExactArgs(1),
		Short: "Build an image from a context directory and tag it",
		RunE: func(cmd *cobra.Command, args []string) error {
			contextDir := strings.TrimSpace(args[0])

			adapter, err := app.adapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			var outcome engine.Outcome
			if len(tags) == 1 {
				outcome, err = adapter.BuildImage(cmd.Context(), contextDir, tags[0])
			} else {
				outcome, err = adapter.BuildImageTags(cmd.Context(), contextDir, tags)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "Image tag (repeatable)")
	cmd.Flags().String("dockerfile", "", "Dockerfile path relative to the context")
	bindFlag(cmd.Flags().Lookup("dockerfile"), "docker.dockerfile")
	return cmd
}

func newPushCommand(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "push <tag>",
		Args:  cobra.ExactArgs(1),
		Short: "Push a tagged image to its registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := app.adapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			outcome, err := adapter.PushImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
			return nil
		},
	}
}
