package utils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestGenerateUniqueFilename(t *testing.T) {
	name := GenerateUniqueFilename(8, "chunk_", ".tif")
	if !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, ".tif") {
		t.Errorf("unexpected filename: %s", name)
	}
	if len(name) != len("chunk_")+8+len(".tif") {
		t.Errorf("unexpected filename length: %s", name)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name := GenerateUniqueFilename(12, "", "")
				mu.Lock()
				seen[name] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 1600 {
		t.Errorf("expected 1600 unique names, got %d", len(seen))
	}
}

func TestLoadConfigJSON(t *testing.T) {
	dir, err := ioutil.TempDir("", "config_test_")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.json")
	content := `{"gdal_num_threads": 4, "warp_bin": "/opt/gdal/bin/gdalwarp", "worker_threads": 8}`
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.GDALNumThreads != 4 || cfg.WarpBin != "/opt/gdal/bin/gdalwarp" || cfg.WorkerThreads != 8 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	// defaults survive for unset fields
	if cfg.TranslateBin != "gdal_translate" {
		t.Errorf("expected default translate binary, got %s", cfg.TranslateBin)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir, err := ioutil.TempDir("", "config_test_")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	content := "gdal_num_threads: 2\nverbose: true\n"
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.GDALNumThreads != 2 || !cfg.Verbose {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.json"); err == nil {
		t.Errorf("expected error for missing config file")
	}
}
