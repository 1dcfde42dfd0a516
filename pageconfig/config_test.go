package pageconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestDefaultSetsRootDir(t *testing.T) {
	cfg := Default("/var/data/page1")
	assert.Equal(t, "/var/data/page1", cfg.RootDir)
	assert.Zero(t, cfg.GCPeriod)
}

func TestConfigDecodesFromYAML(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("rootDir: /data/page\ngcPeriod: 1h\n"), &cfg)
	assert.NoError(t, err)
	assert.Equal(t, "/data/page", cfg.RootDir)
	assert.Equal(t, "1h0m0s", cfg.GCPeriod.String())
}

type hostConfig struct {
	Page Config `yaml:"page"`
}

func (h hostConfig) GetPageStorage() Config { return h.Page }

func TestConfigGetterIndirection(t *testing.T) {
	var host hostConfig
	err := yaml.Unmarshal([]byte("page:\n  rootDir: /data/page\n"), &host)
	assert.NoError(t, err)

	var getter ConfigGetter = host
	assert.Equal(t, "/data/page", getter.GetPageStorage().RootDir)
}
