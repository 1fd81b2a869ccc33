package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/agentsh/mcpscope/internal/config"
	"github.com/agentsh/mcpscope/pkg/observability"
	"github.com/spf13/cobra"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mcpscope",
		Short:         "mcpscope: MCP server inventory for developer hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("mcpscope {{.Version}}\n")

	cmd.PersistentFlags().String("config", getenvDefault("MCPSCOPE_CONFIG", config.DefaultConfigPath()), "Config file path")
	cmd.PersistentFlags().String("env-file", ".env", "Load environment variables from this file if it exists")
	cmd.PersistentFlags().String("log-level", "", "Override logging.level (debug|info|warn|error)")

	cmd.AddCommand(newScanCmd(version))
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newFindingsCmd())

	return cmd
}

// runtimeEnv is the resolved configuration and logger shared by commands.
type runtimeEnv struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadRuntime(cmd *cobra.Command) (*runtimeEnv, error) {
	flags := cmd.Root().PersistentFlags()
	envFile, _ := flags.GetString("env-file")
	path, _ := flags.GetString("config")
	level, _ := flags.GetString("log-level")

	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	return &runtimeEnv{cfg: cfg, logger: logger}, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
