// Package config holds the runtime configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hud-tracker/internal/progress"
)

// Config is the on-disk configuration. Zero values fall back to defaults
// when loaded, so a config file only needs the fields it overrides.
type Config struct {
	// ProcessName selects the game window to capture. Empty captures the
	// primary display.
	ProcessName string `json:"process_name"`

	// CaptureIntervalMS is the capture tick in milliseconds.
	CaptureIntervalMS int `json:"capture_interval_ms"`

	// CatalogDir holds the entity definition files (quests.json,
	// hideout_modules.json, projects.json, items.json).
	CatalogDir string `json:"catalog_dir"`

	// Locale picks the display-name language for matching and output.
	Locale string `json:"locale"`

	// OCRLanguage is the tesseract language model.
	OCRLanguage string `json:"ocr_language"`

	// SlotTemplateDir holds the slot-border reference images.
	SlotTemplateDir string `json:"slot_template_dir"`

	// ItemTemplateDirs hold per-item icon images, scanned recursively.
	ItemTemplateDirs []string `json:"item_template_dirs"`

	// ProgressPath is the progress document location.
	ProgressPath string `json:"progress_path"`

	// SlotThreshold and ItemThreshold are the template-match score floors.
	SlotThreshold float64 `json:"slot_threshold"`
	ItemThreshold float64 `json:"item_threshold"`

	// QuestIntervalMS, HideoutIntervalMS, ProjectIntervalMS are per-detector
	// polling cadences in milliseconds.
	QuestIntervalMS   int `json:"quest_interval_ms"`
	HideoutIntervalMS int `json:"hideout_interval_ms"`
	ProjectIntervalMS int `json:"project_interval_ms"`

	// StabilityThreshold is how many consecutive passes confirm a detection.
	StabilityThreshold int `json:"stability_threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CaptureIntervalMS:  250,
		CatalogDir:         "catalog",
		Locale:             "en",
		OCRLanguage:        "eng",
		SlotTemplateDir:    filepath.Join("templates", "slots"),
		ItemTemplateDirs:   []string{filepath.Join("templates", "items")},
		ProgressPath:       progress.DefaultPath(),
		SlotThreshold:      0.70,
		ItemThreshold:      0.80,
		QuestIntervalMS:    2000,
		HideoutIntervalMS:  3000,
		ProjectIntervalMS:  3000,
		StabilityThreshold: 2,
	}
}

// DefaultPath returns ~/.config/hud-tracker/config.json (or the platform
// equivalent).
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "hud-tracker", "config.json")
}

// Load reads the configuration at path. A missing file yields the defaults;
// a present file overrides only the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// fillDefaults replaces zero values with the built-in defaults, so partial
// config files stay valid.
func (c *Config) fillDefaults() {
	def := Default()
	if c.CaptureIntervalMS <= 0 {
		c.CaptureIntervalMS = def.CaptureIntervalMS
	}
	if c.CatalogDir == "" {
		c.CatalogDir = def.CatalogDir
	}
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = def.OCRLanguage
	}
	if c.SlotTemplateDir == "" {
		c.SlotTemplateDir = def.SlotTemplateDir
	}
	if len(c.ItemTemplateDirs) == 0 {
		c.ItemTemplateDirs = def.ItemTemplateDirs
	}
	if c.ProgressPath == "" {
		c.ProgressPath = def.ProgressPath
	}
	if c.SlotThreshold <= 0 {
		c.SlotThreshold = def.SlotThreshold
	}
	if c.ItemThreshold <= 0 {
		c.ItemThreshold = def.ItemThreshold
	}
	if c.QuestIntervalMS <= 0 {
		c.QuestIntervalMS = def.QuestIntervalMS
	}
	if c.HideoutIntervalMS <= 0 {
		c.HideoutIntervalMS = def.HideoutIntervalMS
	}
	if c.ProjectIntervalMS <= 0 {
		c.ProjectIntervalMS = def.ProjectIntervalMS
	}
	if c.StabilityThreshold <= 0 {
		c.StabilityThreshold = def.StabilityThreshold
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.SlotThreshold > 1 || c.ItemThreshold > 1 {
		return fmt.Errorf("match thresholds must be in (0, 1]")
	}
	if c.CaptureIntervalMS < 16 {
		return fmt.Errorf("capture interval %dms is below one display refresh", c.CaptureIntervalMS)
	}
	return nil
}

// CaptureInterval returns the capture tick as a duration.
func (c Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMS) * time.Millisecond
}

// QuestInterval returns the quest detector cadence.
func (c Config) QuestInterval() time.Duration {
	return time.Duration(c.QuestIntervalMS) * time.Millisecond
}

// HideoutInterval returns the hideout detector cadence.
func (c Config) HideoutInterval() time.Duration {
	return time.Duration(c.HideoutIntervalMS) * time.Millisecond
}

// ProjectInterval returns the project detector cadence.
func (c Config) ProjectInterval() time.Duration {
	return time.Duration(c.ProjectIntervalMS) * time.Millisecond
}
