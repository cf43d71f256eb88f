package config_test

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"

	"github.com/firmadoc/pdfmerge/config"
)

func TestConfig(t *testing.T) {
	const configContent = `
listen_addr = ":9000"
max_upload_bytes = 1048576
compress_level = 6
`

	c := config.Default()
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	assert.Equal(t, ":9000", c.ListenAddr)
	assert.Equal(t, int64(1048576), c.MaxUploadBytes)
	assert.Equal(t, 6, c.CompressLevel)

	// Fields not present in the file keep their defaults.
	assert.Equal(t, 20.0, c.MinBoxWidth)
	assert.Equal(t, 10.0, c.MinBoxHeight)
}

func TestValidation(t *testing.T) {
	const configContent = `
compress_level = 42
`

	c := config.Default()
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	err := c.ValidateFields()
	assert.NotNil(t, err)
}

func TestDefaults(t *testing.T) {
	c := config.Default()
	assert.NoError(t, c.ValidateFields())
	assert.Equal(t, ":8090", c.ListenAddr)
}
