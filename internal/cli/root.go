package cli

import (
	"os"
	"strings"
	"time"

	"assessment-service/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "quiz-service",
		Short:        "Timed quiz attempts served over WebSocket",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "config/config.yaml", "path to YAML config")
	flags.String("port", "", "port to listen on (overrides config)")
	flags.String("redis-addr", "", "redis address (overrides config)")
	flags.String("postgres-url", "", "postgres connection url (overrides config)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json or text")

	cmd.AddCommand(NewStartCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewScoreCmd())
	return cmd
}

// viperForCmd binds a command's flags and QUIZ_* environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "QUIZ_PORT", "PORT")
	_ = v.BindEnv("config", "QUIZ_CONFIG", "CONFIG_PATH")
	return v
}

// loadConfig reads the YAML file and overlays flags and environment on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viperForCmd(cmd)
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return cfg, err
	}

	overlay := func(dst *string, key string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	overlay(&cfg.Server.Port, "port")
	overlay(&cfg.Redis.Addr, "redis-addr")
	overlay(&cfg.Postgres.URL, "postgres-url")
	overlay(&cfg.Log.Level, "log-level")
	overlay(&cfg.Log.Format, "log-format")

	setupLogging(cfg.Log.Level, cfg.Log.Format)
	log.Debug().Str("config", v.GetString("config")).Msg("config loaded")
	return cfg, nil
}

func setupLogging(levelName, format string) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(format, "text") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
