package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/claimprint/pkg/cropper"
	"github.com/menta2k/claimprint/pkg/layout"
)

// Config holds the application configuration
type Config struct {
	Claim    ClaimConfig           `json:"claim"`
	Crop     CropConfig            `json:"crop"`
	Grid     layout.GridConfig     `json:"grid"`
	Freeform layout.FreeformConfig `json:"freeform"`
	Output   OutputConfig          `json:"output"`
	AI       AIConfig              `json:"ai"`
}

// ClaimConfig holds the text printed on the claim form
type ClaimConfig struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	Name    string `json:"name"`
	// Empty means the current month
	Month      string   `json:"month"`
	Categories []string `json:"categories"`
}

// CropConfig holds configuration for crop sessions
type CropConfig struct {
	Policy            string  `json:"policy"`
	MinSize           float64 `json:"min_size"`
	HandleZoneMin     float64 `json:"handle_zone_min"`
	HandleZoneDivisor float64 `json:"handle_zone_divisor"`
	Format            string  `json:"format"`
	Quality           int     `json:"quality"`
	Lossless          bool    `json:"lossless"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir  string  `json:"output_dir"`
	Layout     string  `json:"layout"`
	PageFormat string  `json:"page_format"`
	DPI        float64 `json:"dpi"`
	Quality    int     `json:"quality"`
}

// AIConfig selects the vision backend used to annotate receipts
type AIConfig struct {
	Backend string `json:"backend"`
	URL     string `json:"url"`
	Model   string `json:"model"`
	// Environment variable holding the Gemini API key
	APIKeyEnv string `json:"api_key_env"`
	MaxDim    int    `json:"max_dim"`
}

// Backends accepted in ai.backend
var Backends = []string{"none", "ollama", "llamacpp", "gemini"}

// Default returns a configuration with default values
func Default() *Config {
	crop := cropper.DefaultConfig()
	return &Config{
		Claim: ClaimConfig{
			Title: "STAFF MONTHLY CLAIM FORM",
		},
		Crop: CropConfig{
			Policy:            "centered",
			MinSize:           crop.MinSize,
			HandleZoneMin:     crop.HandleZoneMin,
			HandleZoneDivisor: crop.HandleZoneDivisor,
			Format:            crop.Format,
			Quality:           crop.Quality,
		},
		Grid:     layout.DefaultGridConfig(),
		Freeform: layout.DefaultFreeformConfig(),
		Output: OutputConfig{
			OutputDir:  "./output",
			Layout:     "grid",
			PageFormat: "png",
			DPI:        150,
			Quality:    90,
		},
		AI: AIConfig{
			Backend:   "none",
			URL:       "",
			Model:     "",
			APIKeyEnv: "GEMINI_API_KEY",
			MaxDim:    1024,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := cropper.ParsePolicy(c.Crop.Policy); err != nil {
		return fmt.Errorf("crop.policy: %w", err)
	}

	if c.Crop.MinSize < 1 {
		return fmt.Errorf("crop.min_size must be positive")
	}

	if c.Crop.HandleZoneDivisor <= 0 {
		return fmt.Errorf("crop.handle_zone_divisor must be positive")
	}

	if c.Crop.Quality < 1 || c.Crop.Quality > 100 {
		return fmt.Errorf("crop.quality must be between 1 and 100")
	}

	if !oneOf(c.Crop.Format, "jpg", "jpeg", "png", "webp") {
		return fmt.Errorf("crop.format must be jpg, png or webp")
	}

	if c.Grid.Page.Width <= 0 || c.Grid.Page.Height <= 0 {
		return fmt.Errorf("grid.page must have a positive size")
	}

	if c.Grid.FirstPageCapacity < 0 || c.Grid.FullPageCapacity < 1 || c.Grid.Columns < 1 {
		return fmt.Errorf("grid capacities and columns must be positive")
	}

	if c.Grid.FormHeight < 0 || c.Grid.FormHeight >= c.Grid.Page.Height {
		return fmt.Errorf("grid.form_height must fit on the page")
	}

	if c.Freeform.Page.Width <= 0 || c.Freeform.Page.Height <= 0 {
		return fmt.Errorf("freeform.page must have a positive size")
	}

	if c.Freeform.MinWidth <= 0 || c.Freeform.MinHeight <= 0 {
		return fmt.Errorf("freeform minimum size must be positive")
	}

	if !oneOf(c.Output.Layout, "grid", "freeform") {
		return fmt.Errorf("output.layout must be grid or freeform")
	}

	if !oneOf(c.Output.PageFormat, "png", "jpg", "jpeg", "webp") {
		return fmt.Errorf("output.page_format must be png, jpg or webp")
	}

	if c.Output.DPI < 10 || c.Output.DPI > 600 {
		return fmt.Errorf("output.dpi must be between 10 and 600")
	}

	if !oneOf(c.AI.Backend, Backends...) {
		return fmt.Errorf("ai.backend must be one of %s", strings.Join(Backends, ", "))
	}

	if c.AI.Backend == "gemini" && c.AI.APIKeyEnv == "" {
		return fmt.Errorf("ai.api_key_env is required for the gemini backend")
	}

	return nil
}

// CropperConfig converts the crop section into session settings
func (c *Config) CropperConfig() (cropper.CropConfig, error) {
	policy, err := cropper.ParsePolicy(c.Crop.Policy)
	if err != nil {
		return cropper.CropConfig{}, err
	}
	return cropper.CropConfig{
		Policy:            policy,
		MinSize:           c.Crop.MinSize,
		HandleZoneMin:     c.Crop.HandleZoneMin,
		HandleZoneDivisor: c.Crop.HandleZoneDivisor,
		Format:            c.Crop.Format,
		Quality:           c.Crop.Quality,
		Lossless:          c.Crop.Lossless,
	}, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "claimprint", "config.json")
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}
