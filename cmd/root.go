package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai/gemini"
	"github.com/spigell/interview-coach/internal/app"
	"github.com/spigell/interview-coach/internal/config"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/secrets"
)

const (
	appName = "interview-coach"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   appName,
		Short: "interview-coach serves AI-backed interview preparation with a resilience layer around the model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := config.Bind(viper.GetViper()); err != nil {
		log.Fatal(err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-coach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
	}

	// Defaults and environment are enough to run, so only an explicit or broken file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// bootstrap builds the logger, the configuration and the application.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *app.App, error) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, logger, nil, fmt.Errorf("getting a config: %w", err)
	}

	logger.Debug("starting with config", zap.Any("resilience", cfg.Resilience), zap.String("model", cfg.AI.Gemini.Model))

	generator, err := newGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return cfg, logger, nil, err
	}

	a, err := app.New(cfg.Resilience, generator, logger)
	if err != nil {
		return cfg, logger, nil, err
	}
	return cfg, logger, a, nil
}

func newGenerator(ctx context.Context, cfg config.AI, logger *zap.Logger) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file)", err)
	}

	return gemini.NewGenerator(ctx, gemini.Config{
		APIKey:      apiKey,
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
		MaxLogLen:   cfg.Gemini.MaxLogLength,
	}, logger)
}
