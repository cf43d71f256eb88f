package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)
}

var (
	DefaultLocation string = "./pdfmerge.conf" // Default location of the config file
	Settings        Config                     // Initialized once inside Read, settings are stored in memory.
)

// Config is the root of the config
type Config struct {
	ListenAddr     string  `toml:"listen_addr" valid:"-"`
	MaxUploadBytes int64   `toml:"max_upload_bytes" valid:"-"`
	CompressLevel  int     `toml:"compress_level" valid:"range(-2|9)"`
	MaxImagePixels int     `toml:"max_image_pixels" valid:"-"`
	MinBoxWidth    float64 `toml:"min_box_width" valid:"-"`
	MinBoxHeight   float64 `toml:"min_box_height" valid:"-"`
}

// Default returns the settings used when no config file is given.
func Default() Config {
	return Config{
		ListenAddr:     ":8090",
		MaxUploadBytes: 50 << 20,
		CompressLevel:  -1,
		MaxImagePixels: 4_000_000,
		MinBoxWidth:    20,
		MinBoxHeight:   10,
	}
}

// ValidateFields validates all the fields of the config
func (c Config) ValidateFields() error {
	_, err := govalidator.ValidateStruct(c)
	if err != nil {
		return err
	}
	return nil
}

// Read loads the config file into the package-level Settings. Fields left
// out of the file keep their defaults.
func Read(configfile string) error {
	if _, err := os.Stat(configfile); err != nil {
		return fmt.Errorf("config file is missing: %s", configfile)
	}

	c := Default()
	if _, err := toml.DecodeFile(configfile, &c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.ValidateFields(); err != nil {
		return fmt.Errorf("config is not valid: %w", err)
	}

	Settings = c
	return nil
}
