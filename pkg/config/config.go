package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Filemanager FilemanagerConfig `mapstructure:"filemanager"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig contains server-specific configuration
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	ConnectorPath string `mapstructure:"connector_path"`
	APIKey        string `mapstructure:"api_key"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Root       string `mapstructure:"root"`
	CreateRoot bool   `mapstructure:"create_root"`
	// PathPrefix is prepended to every logical path before it reaches the
	// backend.
	PathPrefix string `mapstructure:"path_prefix"`
}

// FilemanagerConfig is the behavior and wire-format configuration of the
// file manager. It is shared by all requests and must not be modified after
// Load returns.
type FilemanagerConfig struct {
	Culture      string       `mapstructure:"culture"`
	DateFormat   string       `mapstructure:"date_format"`
	FileSorting  string       `mapstructure:"file_sorting"`
	ShowThumbs   bool         `mapstructure:"show_thumbs"`
	Capabilities []string     `mapstructure:"capabilities"`
	Upload       UploadConfig `mapstructure:"upload"`
	Images       ImagesConfig `mapstructure:"images"`
	Edit         EditConfig   `mapstructure:"edit"`
	Icons        IconsConfig  `mapstructure:"icons"`
	Cache        CacheConfig  `mapstructure:"cache"`
}

// UploadConfig controls the upload pipeline
type UploadConfig struct {
	Overwrite  bool `mapstructure:"overwrite"`
	ImagesOnly bool `mapstructure:"images_only"`
	// FileSizeLimit is the maximum upload size in MB. Zero disables the check.
	FileSizeLimit int  `mapstructure:"file_size_limit"`
	UniqueNames   bool `mapstructure:"unique_names"`
}

// MaxUploadBytes returns the upload limit in bytes, 0 meaning unlimited.
func (u UploadConfig) MaxUploadBytes() int64 {
	if u.FileSizeLimit <= 0 {
		return 0
	}
	return int64(u.FileSizeLimit) * 1024 * 1024
}

// Dimension is a width/height pair
type Dimension struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ImagesConfig lists image extensions and the generated image sizes
type ImagesConfig struct {
	Extensions []string  `mapstructure:"extensions"`
	Thumbnail  Dimension `mapstructure:"thumbnail"`
	Preview    Dimension `mapstructure:"preview"`
}

// IsImage reports whether ext (without dot, any case) is an image extension.
func (i ImagesConfig) IsImage(ext string) bool {
	return containsFold(i.Extensions, ext)
}

// EditConfig controls the editfile/savefile actions
type EditConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Extensions []string `mapstructure:"extensions"`
}

// IsEditable reports whether files with extension ext may be edited.
func (e EditConfig) IsEditable(ext string) bool {
	return e.Enabled && containsFold(e.Extensions, ext)
}

// IconsConfig locates the icons the frontend ships
type IconsConfig struct {
	Path       string   `mapstructure:"path"`
	Directory  string   `mapstructure:"directory"`
	Default    string   `mapstructure:"default"`
	Extensions []string `mapstructure:"extensions"`
}

// CacheConfig sizes the generated-image cache
type CacheConfig struct {
	ImageEntries int `mapstructure:"image_entries"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	cfg := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal configuration
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Post-process configuration
	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration with every default applied and no
// external input. Used by tests and embedders.
func Default() *Config {
	v := viper.New()
	applyDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return cfg
}

func setDefaults() {
	applyDefaults(viper.GetViper())

	// Environment variable mappings
	_ = viper.BindEnv("server.api_key", "CONNECTOR_API_KEY")
	_ = viper.BindEnv("storage.root", "CONNECTOR_ROOT")
	_ = viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func applyDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.connector_path", "/connector")

	// Storage defaults
	v.SetDefault("storage.create_root", true)

	// File manager defaults
	v.SetDefault("filemanager.culture", "en")
	v.SetDefault("filemanager.date_format", "02 Jan 2006 15:04")
	v.SetDefault("filemanager.file_sorting", "default")
	v.SetDefault("filemanager.show_thumbs", true)
	v.SetDefault("filemanager.capabilities", []string{"select", "delete", "rename", "download"})
	v.SetDefault("filemanager.upload.overwrite", false)
	v.SetDefault("filemanager.upload.images_only", false)
	v.SetDefault("filemanager.upload.file_size_limit", 16)
	v.SetDefault("filemanager.upload.unique_names", false)
	v.SetDefault("filemanager.images.extensions", []string{"jpg", "jpeg", "gif", "png", "bmp", "webp", "tif", "tiff"})
	v.SetDefault("filemanager.images.thumbnail.width", 64)
	v.SetDefault("filemanager.images.thumbnail.height", 64)
	v.SetDefault("filemanager.images.preview.width", 800)
	v.SetDefault("filemanager.images.preview.height", 600)
	v.SetDefault("filemanager.edit.enabled", true)
	v.SetDefault("filemanager.edit.extensions", []string{"txt", "csv", "md", "json", "xml", "html", "css", "js", "yaml", "yml"})
	v.SetDefault("filemanager.icons.path", "images/fileicons/")
	v.SetDefault("filemanager.icons.directory", "_Open.png")
	v.SetDefault("filemanager.icons.default", "default.png")
	v.SetDefault("filemanager.icons.extensions", []string{
		"aac", "avi", "bmp", "chm", "css", "dll", "doc", "docx", "fla", "gif", "htm", "html", "ini",
		"jar", "jpeg", "jpg", "js", "lasso", "mdb", "mov", "mp3", "mpg", "pdf", "php", "png", "ppt",
		"py", "rb", "real", "reg", "rtf", "sql", "swf", "txt", "vbs", "wav", "wma", "wmv", "xls",
		"xlsx", "xml", "xsl", "zip",
	})
	v.SetDefault("filemanager.cache.image_entries", 256)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

func postProcess(cfg *Config) error {
	// Serve the current directory if no root is specified
	if cfg.Storage.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg.Storage.Root = wd
	}

	// Ensure the storage root is absolute
	if !filepath.IsAbs(cfg.Storage.Root) {
		abs, err := filepath.Abs(cfg.Storage.Root)
		if err != nil {
			return err
		}
		cfg.Storage.Root = abs
	}

	if !strings.HasPrefix(cfg.Server.ConnectorPath, "/") {
		cfg.Server.ConnectorPath = "/" + cfg.Server.ConnectorPath
	}
	if cfg.Filemanager.Upload.FileSizeLimit < 0 {
		return fmt.Errorf("filemanager.upload.file_size_limit must not be negative")
	}

	return nil
}

func containsFold(list []string, s string) bool {
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(strings.TrimPrefix(v, "."), s) {
			return true
		}
	}
	return false
}
