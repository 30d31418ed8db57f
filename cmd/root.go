package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cartCmd "github.com/alfikri/estore-bff/cart/cmd"
	"github.com/alfikri/estore-bff/internal/common/constants"
	"github.com/alfikri/estore-bff/internal/log"
)

func Start() {
	logger := log.InitLogger("/var/log/estore-bff.log").
		With().
		Str(log.KeyAppName, constants.APP_MAIN_ESTORE).
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	rootCmd := &cobra.Command{}
	commands := []*cobra.Command{
		{
			Use:   "cart",
			Short: "Run cart bff service",
			Run: func(cmd *cobra.Command, args []string) {
				cartCmd.RunCartService(cmd.Context())
			},
		},
	}
	rootCmd.AddCommand(commands...)
	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
