package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvPicoDiceConfig = "PICODICE_CONFIG"
	EnvPicoDiceHome   = "PICODICE_HOME"
)

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
	LogPath    string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvPicoDiceConfig))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvPicoDiceHome)))
	if homeDir == "" {
		homeDir = defaultPicoDiceHome()
	}

	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

func defaultPicoDiceHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".picodice"
	}
	return filepath.Join(home, ".picodice")
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{
		HomeDir:    homeDir,
		ConfigPath: configPath,
		LogPath:    filepath.Join(homeDir, "picodice.log"),
	}
}
