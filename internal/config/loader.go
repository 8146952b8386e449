package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/rover-supervisor/internal/subsystem"
)

const (
	entryFileName    = "process.py"
	json5ConfigName  = "config.json5"
	jsonConfigName   = "config.json"
)

// subsystemConfig is the decoded shape of a per-subsystem config file.
type subsystemConfig struct {
	Name     string      `json:"name"`
	Priority *int        `json:"priority"`
	Args     orderedArgs `json:"args"`
}

// Load scans root's immediate child directories for subsystems and
// materialises a Registry. Missing entry files, missing configs,
// unparseable configs, and negative priorities are skipped with a warning;
// a duplicate subsystem name is the only fatal error: Load returns that
// error and no registry.
func Load(log *slog.Logger, root string, heartbeatInterval float64) (*subsystem.Registry, error) {
	reg := subsystem.NewRegistry()

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read subsystems root %s: %w", root, err)
	}

	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		dirName := de.Name()
		dir := filepath.Join(root, dirName)

		entryPath := filepath.Join(dir, entryFileName)
		if _, err := os.Stat(entryPath); err != nil {
			log.Warn("skipping subsystem: missing entry file", "subsystem", dirName, "path", entryPath)
			continue
		}

		cfg, configPath, err := readSubsystemConfig(dir)
		if err != nil {
			log.Warn("skipping subsystem: config error", "subsystem", dirName, "error", err)
			continue
		}
		if cfg == nil {
			log.Warn("skipping subsystem: missing config", "subsystem", dirName)
			continue
		}

		name := dirName
		if strings.TrimSpace(cfg.Name) != "" {
			name = cfg.Name
		}
		priority := 0
		if cfg.Priority != nil {
			priority = *cfg.Priority
		}
		if priority < 0 {
			log.Warn("skipping subsystem: negative priority", "subsystem", name, "priority", priority)
			continue
		}

		extraArgs := flattenArgs(cfg.Args)
		sub := subsystem.New(name, priority, entryPath, extraArgs)
		if err := reg.Add(sub); err != nil {
			return nil, fmt.Errorf("loading %s: %w", configPath, err)
		}
	}

	return reg, nil
}

// readSubsystemConfig locates config.json5 (preferred) or config.json
// inside dir, parses it leniently for the .json5 case, and decodes it.
// Returns (nil, _, nil) when neither file is present.
func readSubsystemConfig(dir string) (*subsystemConfig, string, error) {
	json5Path := filepath.Join(dir, json5ConfigName)
	jsonPath := filepath.Join(dir, jsonConfigName)

	var path string
	var lenient bool
	if _, err := os.Stat(json5Path); err == nil {
		path, lenient = json5Path, true
	} else if _, err := os.Stat(jsonPath); err == nil {
		path, lenient = jsonPath, false
	} else {
		return nil, "", nil
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path is built from a discovered subsystem directory, not user input
	if err != nil {
		return nil, path, fmt.Errorf("read %s: %w", path, err)
	}
	if lenient {
		raw = stripJSON5(raw)
	}

	var cfg subsystemConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, path, nil
}
