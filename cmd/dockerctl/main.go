package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dockerbridge/internal/engine"
	"dockerbridge/internal/infra"
	"dockerbridge/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newCLIApp()
	defer app.sync()

	root := newRootCommand(app)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "command interrupted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// enqueueClient is the queue side of the CLI
type enqueueClient interface {
	EnqueueBuildTask(ctx context.Context, payload tasks.BuildTaskPayload, priority int) (*asynq.TaskInfo, error)
	EnqueuePushTask(ctx context.Context, payload tasks.PushTaskPayload, priority int) (*asynq.TaskInfo, error)
	Close() error
}

// cliApp holds what commands share once flags are parsed
type cliApp struct {
	config *infra.Config
	logger *zap.Logger

	newLogger   func(level string) (*zap.Logger, error)
	newEnqueuer func(cfg infra.RedisConfig, logger *zap.Logger) enqueueClient
	engineOpts  []engine.Option
}

func newCLIApp() *cliApp {
	return &cliApp{
		newLogger: infra.NewLogger,
		newEnqueuer: func(cfg infra.RedisConfig, logger *zap.Logger) enqueueClient {
			return tasks.NewTaskClient(cfg, logger)
		},
	}
}

func (a *cliApp) sync() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// adapter connects to the configured engine
func (a *cliApp) adapter() (*engine.Adapter, error) {
	docker := a.config.Docker
	opts := append([]engine.Option{
		engine.WithDockerfile(docker.Dockerfile),
		engine.WithAPIVersion(docker.APIVersion),
	}, a.engineOpts...)
	return engine.Create(docker.URL, docker.Username, docker.Password, docker.Email, a.logger, opts...)
}

func newRootCommand(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:           "dockerctl",
		Short:         "Build and push container images through a Docker engine",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.String("url", "", "Docker engine URL (default local engine)")
	flags.String("user", "", "Registry username")
	flags.String("password", "", "Registry password")
	flags.String("email", "", "Registry email")
	flags.String("log-level", "info", "Set log verbosity (debug, info, warn, error)")
	bindFlag(flags.Lookup("url"), "docker.url")
	bindFlag(flags.Lookup("user"), "docker.username")
	bindFlag(flags.Lookup("password"), "docker.password")
	bindFlag(flags.Lookup("email"), "docker.email")
	bindFlag(flags.Lookup("log-level"), "log.level")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		config, err := infra.LoadConfig()
		if err != nil {
			return err
		}
		app.config = config

		if app.logger == nil {
			logger, err := app.newLogger(config.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			app.logger = logger
		}
		return nil
	}

	root.AddCommand(
		newBuildCommand(app),
		newPushCommand(app),
		newEnqueueCommand(app),
	)
	return root
}

func bindFlag(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}
