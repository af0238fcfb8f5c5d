package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"Arya-Agent/internal/config"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "aryad",
	Short: "Arya Starknet conversational agent",
	Long: `aryad runs the Arya agent: token swaps and prices on Starknet plus
Twitch and YouTube creator lookups, driven by natural language messages.

Examples:
  aryad serve --config configs/arya.json
  aryad ask "Swap 10 ETH for LORDS"
  aryad ask "What is STRK price" --remote http://localhost:8080
  aryad tokens`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	viper.SetEnvPrefix("ARYA")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the JSON config file (env ARYA_CONFIG)")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// loadConfig 读取配置并初始化全局日志。
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

func printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	if code := xerrors.CodeOf(err); code != xerrors.CodeUnknown {
		red.Fprintf(os.Stderr, "\nError [%s]: %v\n\n", code, err)
		return
	}
	red.Fprintf(os.Stderr, "\nError: %v\n\n", err)
}

func codeOf(err error) string {
	return string(xerrors.CodeOf(err))
}
