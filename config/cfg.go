package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"folio/css"
	"folio/layout"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ViewportConfig struct {
		Width   float64        `yaml:"width" validate:"gte=0"`
		Height  float64        `yaml:"height" validate:"gte=0"`
		Margins layout.Margins `yaml:"margins"`
	}

	LayoutConfig struct {
		StylesheetPath string  `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		FontSize       float64 `yaml:"font_size" validate:"gt=0"`
		LineSpacing    float64 `yaml:"line_spacing" validate:"gt=0"`
		DPI            float64 `yaml:"dpi" validate:"gt=0"`
	}

	PaginationConfig struct {
		Offsets       OffsetMode `yaml:"offsets" validate:"oneof=0 1"`
		Strict        bool       `yaml:"strict"`
		PreviewLength int        `yaml:"preview_length" validate:"min=1"`
	}

	BookmarksConfig struct {
		Storage StorageKind `yaml:"storage" validate:"oneof=0 1 2"`
		Path    string      `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required_unless=Storage 0"`
	}

	OutputConfig struct {
		PageTemplate string `yaml:"page_template" validate:"required"`
	}

	ServerConfig struct {
		Listen string `yaml:"listen" validate:"required,hostname_port"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Viewport   ViewportConfig   `yaml:"viewport"`
		Layout     LayoutConfig     `yaml:"layout"`
		Pagination PaginationConfig `yaml:"pagination"`
		Bookmarks  BookmarksConfig  `yaml:"bookmarks"`
		Output     OutputConfig     `yaml:"output"`
		Server     ServerConfig     `yaml:"server"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, page template is executed
	// later for every page and must survive configuration processing as is
	PageTemplateFieldName TemplateFieldName = "page_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(PageTemplateFieldName)),
)

// Viewport returns configured page box less margins.
func (conf *ViewportConfig) Viewport() layout.Viewport {
	return layout.Viewport{Width: conf.Width, Height: conf.Height}.Inset(conf.Margins)
}

// BaseStyle returns style of untagged text.
func (conf *LayoutConfig) BaseStyle() css.Style {
	return css.Style{Size: conf.FontSize, LineHeight: conf.LineSpacing}
}

// Stylesheet returns configured stylesheet, or the built-in one when none is
// configured.
func (conf *LayoutConfig) Stylesheet(p *css.Parser) (*css.Stylesheet, error) {
	if len(conf.StylesheetPath) == 0 {
		return p.Parse(css.DefaultSource(), "default.css"), nil
	}
	data, err := os.ReadFile(conf.StylesheetPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read stylesheet: %w", err)
	}
	return p.Parse(data, conf.StylesheetPath), nil
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
