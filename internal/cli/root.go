// Package cli implements the avplay command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thesyncim/avplay/internal/config"
	"github.com/thesyncim/avplay/internal/log"
)

// Version is set at build time.
var Version = "dev"

var fs = afero.NewOsFs()

func init() {
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level: panic, fatal, error, warn, info, debug, trace")
	lo.Must0(viper.BindPFlag(config.LogsLevel, rootCmd.PersistentFlags().Lookup("log-level")))
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return lo.Map(logrus.AllLevels, func(l logrus.Level, _ int) string { return l.String() }), cobra.ShellCompDirectiveNoFileComp
	}))

	rootCmd.PersistentFlags().Bool("log-json", false, "Use json format for logs")
	lo.Must0(viper.BindPFlag(config.LogsJSON, rootCmd.PersistentFlags().Lookup("log-json")))
}

var rootCmd = &cobra.Command{
	Use:           config.App,
	Short:         "Decode media containers and present their streams",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := log.Setup(fs)
		if err != nil {
			return err
		}
		cobra.OnFinalize(func() { _ = closer.Close() })
		return nil
	},
}

// Execute runs the command line and exits on failure.
func Execute() {
	if err := config.Setup(fs); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if viper.GetBool(config.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logrus.WithError(err).Debug("command failed")
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}
