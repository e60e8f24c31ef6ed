// Package cli 实现 satyamctl 的子命令。
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"satyam-ai-go/internal/app"
	"satyam-ai-go/internal/config"
	"satyam-ai-go/pkg/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd 创建 satyamctl 根命令。
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "satyamctl",
		Short: "Satyam AI command line tools",
		Long: `satyamctl runs the retrieval and answering pipeline of Satyam AI directly,
without the HTTP server. It reads the same config.yaml and SATYAM_* environment
variables as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./configs/config.yaml", "Path to config.yaml (empty for defaults and env only)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	cmd.AddCommand(newRetrieveCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) core(cmd *cobra.Command) (*app.Core, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	backends, err := app.CacheBackends(cmd.Context(), cfg, nil)
	if err != nil {
		return nil, err
	}
	return app.NewCore(cfg, backends)
}

// initLogger 把日志写到 stderr，stdout 只输出命令结果。
func initLogger(level string) error {
	atomic := zap.NewAtomicLevel()
	if err := atomic.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = atomic
	zapConfig.OutputPaths = []string{"stderr"}
	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	log.SetLogger(logger)
	return nil
}
