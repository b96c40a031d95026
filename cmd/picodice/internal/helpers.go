package internal

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sipeed/picodice/pkg/commands"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/dice"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/ratelimit"
	"github.com/sipeed/picodice/pkg/roller"
)

const Logo = "🎲"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetConfigPath() string {
	return config.ResolveRuntimePaths().ConfigPath
}

// LoadConfig loads .env from the working directory and then the JSON
// config with environment overrides.
func LoadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	return config.LoadConfig(GetConfigPath())
}

// SetupLogging applies the configured level and file sink. debug wins over
// the configured level.
func SetupLogging(cfg *config.Config, debug bool) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return err
		}
	}
	return nil
}

// App holds the stores and command pipeline shared by every front end.
type App struct {
	Roller     *roller.Roller
	Prefix     *commands.Prefix
	Limiter    *ratelimit.Limiter
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Dispatcher *commands.Dispatcher
}

func NewApp(cfg *config.Config) *App {
	var evalOpts []dice.EvaluatorOption
	if cfg.Bot.Seed != 0 {
		evalOpts = append(evalOpts, dice.WithSource(dice.NewSeededSource(cfg.Bot.Seed)))
	}

	reg := metrics.NewRegistry()
	app := &App{
		Roller:   roller.New(nil, nil, dice.NewEvaluator(evalOpts...)),
		Prefix:   commands.NewPrefix(cfg.Bot.Prefix),
		Limiter:  ratelimit.New(cfg.RateLimits.CommandsPerMinute, cfg.RateLimits.Burst),
		Registry: reg,
		Metrics:  metrics.New(reg),
	}

	defs := commands.BuiltinDefinitions(commands.Deps{
		Roller:  app.Roller,
		Prefix:  app.Prefix,
		Metrics: app.Metrics,
	})
	app.Dispatcher = commands.NewDispatcher(
		commands.NewRegistry(defs),
		app.Prefix,
		commands.WithAdmins(cfg.Bot.Admins),
		commands.WithLimiter(app.Limiter),
		commands.WithMetrics(app.Metrics),
	)
	return app
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
