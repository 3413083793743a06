package annotation

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lewtec/boxlabeler/internal/codec/record"
	"github.com/lewtec/boxlabeler/internal/imagefile"
	"github.com/lewtec/boxlabeler/internal/registry"
)

type Config struct {
	User struct {
		Name string `yaml:"name"`
	} `yaml:"user"`
	Images struct {
		Extension string `yaml:"extension"`
	} `yaml:"images"`
	Import struct {
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"import"`
	Export struct {
		SkipEmpty   bool `yaml:"skip_empty"`
		JPEGQuality int  `yaml:"jpeg_quality"`
	} `yaml:"export"`
	Editing struct {
		NudgeStep       float64 `yaml:"nudge_step"`
		ZoneMaxDistance float64 `yaml:"zone_max_distance"`
	} `yaml:"editing"`
	Labels record.LabelMap `yaml:"labels"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	var c Config
	c.User.Name = "default"
	c.Images.Extension = registry.DefaultExtension
	c.Import.ConfidenceThreshold = 0.5
	c.Export.JPEGQuality = imagefile.DefaultJPEGQuality
	c.Editing.NudgeStep = 3
	c.Labels = record.DefaultLabels()
	return &c
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.User.Name == "" {
		return fmt.Errorf("user.name must not be empty")
	}
	if c.Import.ConfidenceThreshold < 0 || c.Import.ConfidenceThreshold > 1 {
		return fmt.Errorf("import.confidence_threshold must be within [0, 1], got %v", c.Import.ConfidenceThreshold)
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("export.jpeg_quality must be within [1, 100], got %d", c.Export.JPEGQuality)
	}
	if c.Editing.NudgeStep < 0 {
		return fmt.Errorf("editing.nudge_step must not be negative")
	}
	if c.Editing.ZoneMaxDistance < 0 {
		return fmt.Errorf("editing.zone_max_distance must not be negative")
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("no labels specified")
	}
	seen := map[int64]string{}
	for label, id := range c.Labels {
		if id <= 0 {
			return fmt.Errorf("label %s has a non-positive id %d", label, id)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("labels %s and %s share the id %d", label, other, id)
		}
		seen[id] = label
	}
	return nil
}

// ParseConfig reads YAML from r on top of DefaultConfig.
func ParseConfig(r io.Reader) (*Config, error) {
	ret := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// yaml merges into a non-nil map, labels from the file replace the defaults instead
	ret.Labels = nil
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("while parsing config: %w", err)
	}
	if ret.Labels == nil {
		ret.Labels = record.DefaultLabels()
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return ret, nil
}

func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConfig(f)
}

// Save writes c as YAML to filename.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
