package utils

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	yaml "gopkg.in/yaml.v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05"

// Config carries the engine-wide settings. It is passed explicitly to the
// entry points that need it; the engine keeps no process-wide singleton.
type Config struct {
	GDALCacheMax    int64  `json:"gdal_cache_max" yaml:"gdal_cache_max"`
	GDALNumThreads  int    `json:"gdal_num_threads" yaml:"gdal_num_threads"`
	TempDir         string `json:"temp_dir" yaml:"temp_dir"`
	TranslateBin    string `json:"translate_bin" yaml:"translate_bin"`
	WarpBin         string `json:"warp_bin" yaml:"warp_bin"`
	WorkerThreads   int    `json:"worker_threads" yaml:"worker_threads"`
	MemcacheAddress string `json:"memcache_address" yaml:"memcache_address"`
	Verbose         bool   `json:"verbose" yaml:"verbose"`
}

func DefaultConfig() *Config {
	return &Config{
		GDALCacheMax:   256 * 1024 * 1024,
		GDALNumThreads: 1,
		TempDir:        os.TempDir(),
		TranslateBin:   "gdal_translate",
		WarpBin:        "gdalwarp",
		WorkerThreads:  1,
	}
}

// LoadConfig reads a Config from a JSON or YAML file, chosen by extension.
// Missing fields fall back to the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}

	if cfg.WorkerThreads < 1 {
		cfg.WorkerThreads = 1
	}
	if cfg.GDALNumThreads < 1 {
		cfg.GDALNumThreads = 1
	}
	if len(cfg.TempDir) == 0 {
		cfg.TempDir = os.TempDir()
	}
	return cfg, nil
}

// InitGDALEnv exports GDAL tuning options for the external warp processes.
// These caches are process wide by nature of the GDAL library; everything
// else in the engine is passed explicitly.
func InitGDALEnv(cfg *Config) {
	setDefaultEnv("GDAL_CACHEMAX", strconv.FormatInt(cfg.GDALCacheMax, 10))
	setDefaultEnv("GDAL_NUM_THREADS", strconv.Itoa(cfg.GDALNumThreads))
	setDefaultEnv("GDAL_PAM_ENABLED", "NO")
	setDefaultEnv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}
