package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kelasin/chat/internal/config"
	"kelasin/chat/internal/database"
	"kelasin/chat/internal/seed"
	"kelasin/chat/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	opts := seed.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the chat database with demo users, classes and messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			if err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns}); err != nil {
				return err
			}
			defer database.Close()

			if err := database.Migrate(ctx); err != nil {
				return err
			}

			res, err := seed.Run(ctx, store.NewPostgresStore(database.Pool), opts)
			if err != nil {
				return err
			}

			log.Info().
				Int("users", len(res.Users)).
				Int("classes", len(res.Classes)).
				Int("messages", res.Messages).
				Str("login", res.Users[0].Email).
				Str("password", seed.DefaultPassword).
				Msg("seed complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Classes, "classes", opts.Classes, "number of classes")
	cmd.Flags().IntVar(&opts.StudentsPerClass, "students", opts.StudentsPerClass, "extra students per class")
	cmd.Flags().IntVar(&opts.MessagesPerClass, "messages", opts.MessagesPerClass, "messages per class")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 = random)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}
