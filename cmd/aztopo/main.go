package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/netlab-dev/azure-topology/pkg/telemetry"
)

var (
	// appFs is where render writes manifests
	appFs = afero.NewOsFs()

	logLevel = new(slog.LevelVar)

	// Root command
	rootCmd = &cobra.Command{
		Use:   "aztopo",
		Short: "Declare a static Azure network and compute topology",
		Long: `aztopo builds a resource group, a NAT gateway, virtual networks with their
subnets, VNET peerings and virtual machines from a set of configuration
tables, and hands the resulting graph to the Pulumi engine.

The resource group name and the VM admin password are read from the
AZTOPO_RG_NAME and AZTOPO_ADMIN_PASSWORD environment variables.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel,
			}))
			slog.SetDefault(logger)
		},
	}

	verbose bool
)

func init() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			logLevel.Set(slog.LevelDebug)
		}
	})

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(defaultsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx := context.Background()

	cfg := telemetry.ConfigFromEnv(os.Getenv)
	cfg.ServiceVersion = version

	_, shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		slog.Error("Failed to setup telemetry", "error", err)
		os.Exit(1)
	}

	err = rootCmd.ExecuteContext(ctx)

	if shutdownErr := shutdown(ctx); shutdownErr != nil {
		slog.Error("Failed to shutdown telemetry", "error", shutdownErr)
	}
	if err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
