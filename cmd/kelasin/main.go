// Command kelasin is a terminal client for the class chat.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kelasin/chat/pkg/chatclient"
)

type app struct {
	configPath string
	verbose    bool

	cfg    *Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "kelasin",
		Short:         "Terminal client for Kelasin class chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if a.verbose {
				level = zerolog.DebugLevel
			}
			a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()

			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if server, _ := cmd.Flags().GetString("server"); server != "" {
				cfg.Server = server
			}
			a.cfg = cfg
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath(), "config file path")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("server", "", "server base URL (overrides the config file)")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.classesCmd(),
		a.historyCmd(),
		a.chatCmd(),
	)
	return root
}

// api returns a client carrying the saved token.
func (a *app) api() (*chatclient.API, error) {
	if a.cfg.Token == "" {
		return nil, errors.New("not logged in, run `kelasin login` first")
	}
	return chatclient.NewAPI(a.cfg.Server, a.cfg.Token), nil
}

// explain turns an expired session into a hint.
func explain(err error) error {
	var apiErr *chatclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		return fmt.Errorf("%w (session expired, run `kelasin login` again)", err)
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
