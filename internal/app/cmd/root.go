// Package cmd tincanopener 命令行入口
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/BlacK-CHi/tincanOpener/internal/app/relay"
	"github.com/BlacK-CHi/tincanOpener/internal/config/loader"
	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
	"github.com/BlacK-CHi/tincanOpener/internal/version"
)

// 全局标志
var (
	configFile string
	logLevel   string
	host       string
	port       int
	noConsole  bool
	quiet      bool
)

// rootCmd 启动中继
var rootCmd = &cobra.Command{
	Use:   "tincanopener",
	Short: "WebSocket to Socket.IO relay",
	Long: `tincanopener relays a single upstream Socket.IO session to any number of
local WebSocket clients. Clients send JSON commands (set_token, connect,
disconnect, emit) and receive every upstream event as a JSON envelope.

Quick Start:
  tincanopener                      Start with ./config.yaml (created if missing)
  tincanopener -c relay.yaml        Use another config file
  tincanopener --port 9000          Override the listen port
  tincanopener config show          Print the effective configuration`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRelay,
}

// Execute 执行根命令
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			corelog.Errorf("FATAL: main goroutine panic recovered: %v", r)
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", loader.DefaultConfigFile, "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug/info/warn/error")
	rootCmd.Flags().StringVar(&host, "host", "", "Listen host")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port")
	rootCmd.Flags().BoolVar(&noConsole, "no-console", false, "Disable the interactive console")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the startup banner")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// flagOverrides 命令行参数覆盖配置，只覆盖显式给出的值
func flagOverrides(cmd *cobra.Command) func(cfg *schema.Root) {
	return func(cfg *schema.Root) {
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = host
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		if noConsole {
			cfg.Console.Enabled = false
		}
	}
}

// loadConfig 解析配置路径并加载
func loadConfig(cmd *cobra.Command) (*schema.Root, string, error) {
	path := configFile
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg, err := loader.Load(path, flagOverrides(cmd))
	if err != nil {
		return nil, path, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := relay.New(ctx, cfg, path)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}
	if !quiet {
		server.DisplayStartupBanner(cmd.OutOrStdout())
	}
	corelog.Infof("tincanopener %s starting on %s", version.GetShortVersion(), server.Endpoint())

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("relay stopped with error: %w", err)
	}
	corelog.Infof("tincanopener stopped")
	return nil
}
