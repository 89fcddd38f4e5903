package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BlacK-CHi/tincanOpener/internal/config/loader"
)

var forceInit bool

// configCmd 配置管理命令组
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the relay configuration file.

Commands:
  init      Generate a configuration file with default values
  show      Show the effective configuration`,
}

// configInitCmd 生成默认配置文件
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Generate a configuration file template",
	Long: `Generate a configuration file with default values.

Example:
  tincanopener config init                 # Create config.yaml in current directory
  tincanopener config init ~/relay.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

// configShowCmd 显示生效配置（文件、环境变量、命令行合并后），密码以掩码显示
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration after merging defaults, the config file,
TINCAN_* environment variables and command line flags. Secrets are masked.

Example:
  tincanopener config show`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := loader.DefaultConfigFile
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	if err := loader.WriteDefaults(path); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", abs)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loader.NewLoaderBuilder().
		WithConfigFile(configFile).
		WithOverrides(flagOverrides(cmd)).
		Build().
		Load()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", configFile)
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
