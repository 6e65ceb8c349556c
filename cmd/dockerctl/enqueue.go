package main

import (
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"dockerbridge/internal/tasks"
)

func newEnqueueCommand(app *cliApp) *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue build and push work for the build worker",
	}
	cmd.PersistentFlags().IntVar(&priority, "priority", 5, "Task priority (0-10)")
	cmd.PersistentFlags().String("redis-addr", "", "Redis address (default localhost:6379)")
	bindFlag(cmd.PersistentFlags().Lookup("redis-addr"), "redis.addr")

	var tags []string
	build := &cobra.Command{
		Use:   "build <context-dir>",
		Args:  cobra.ExactArgs(1),
		Short: "Queue an image build",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(tags) == 0 {
				return fmt.Errorf("at least one --tag is required")
			}
			if err := checkPriority(priority); err != nil {
				return err
			}

			client := app.newEnqueuer(app.config.Redis, app.logger)
			defer client.Close()

			info, err := client.EnqueueBuildTask(cmd.Context(), tasks.BuildTaskPayload{
				ContextDir: args[0],
				Tags:       tags,
			}, priority)
			if err != nil {
				return err
			}
			printTaskInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
	build.Flags().StringArrayVarP(&tags, "tag", "t", nil, "Image tag (repeatable)")

	push := &cobra.Command{
		Use:   "push <tag>",
		Args:  cobra.ExactArgs(1),
		Short: "Queue an image push",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPriority(priority); err != nil {
				return err
			}

			client := app.newEnqueuer(app.config.Redis, app.logger)
			defer client.Close()

			info, err := client.EnqueuePushTask(cmd.Context(), tasks.PushTaskPayload{Tag: args[0]}, priority)
			if err != nil {
				return err
			}
			printTaskInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.AddCommand(build, push)
	return cmd
}

func checkPriority(priority int) error {
	if priority < 0 || priority > 10 {
		return fmt.Errorf("priority must be between 0 and 10, got %d", priority)
	}
	return nil
}

func printTaskInfo(w io.Writer, info *asynq.TaskInfo) {
	fmt.Fprintf(w, "%s\t%s\n", info.ID, info.Queue)
}
