package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Name != "vault-mcp-go" {
		t.Errorf("Expected name 'vault-mcp-go', got '%s'", cfg.Name)
	}

	if cfg.Port != 27123 {
		t.Errorf("Expected port 27123, got %d", cfg.Port)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected host '127.0.0.1', got '%s'", cfg.Host)
	}

	if !cfg.StartOnStartup {
		t.Errorf("Expected startOnStartup to default to true")
	}

	if cfg.Restart.SettleDelayMS != 500 {
		t.Errorf("Expected settle delay 500ms, got %d", cfg.Restart.SettleDelayMS)
	}

	if cfg.SettleDelay() != 500*time.Millisecond {
		t.Errorf("Expected SettleDelay 500ms, got %s", cfg.SettleDelay())
	}

	if cfg.Addr() != "127.0.0.1:27123" {
		t.Errorf("Expected addr 127.0.0.1:27123, got %s", cfg.Addr())
	}
}

func TestLoadConfigJSON(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vault_mcp.json")

	testConfig := `{
		"port": 8080,
		"startOnStartup": false,
		"tools": {"rename_file": false, " read_file ": true},
		"vault": {"root": "/tmp/notes"},
		"logging": {"level": "DEBUG", "format": "text", "path": "/tmp/test.log"}
	}`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.StartOnStartup {
		t.Errorf("Expected startOnStartup false")
	}
	if cfg.ToolEnabled("rename_file") {
		t.Errorf("Expected rename_file disabled")
	}
	if !cfg.ToolEnabled("read_file") {
		t.Errorf("Expected trimmed read_file toggle to be kept")
	}
	if !cfg.ToolEnabled("list_files") {
		t.Errorf("Expected unlisted tool to be enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level normalized to 'debug', got '%s'", cfg.Logging.Level)
	}
	if cfg.Vault.ConfigDir != ".obsidian" {
		t.Errorf("Expected default config dir, got %q", cfg.Vault.ConfigDir)
	}
	if cfg.Restart.BindAttempts != DefaultBindAttempts {
		t.Errorf("Expected default bind attempts, got %d", cfg.Restart.BindAttempts)
	}
}

func TestLoadConfigYAMLAndTOML(t *testing.T) {
	tempDir := t.TempDir()

	yamlPath := filepath.Join(tempDir, "vault_mcp.yaml")
	yamlConfig := "port: 9001\nlocale: zh\ntools:\n  delete_file: false\nrestart:\n  settleDelayMs: 50\n"
	if err := os.WriteFile(yamlPath, []byte(yamlConfig), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	cfg, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Port != 9001 || cfg.Locale != "zh" || cfg.ToolEnabled("delete_file") || cfg.Restart.SettleDelayMS != 50 {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}

	tomlPath := filepath.Join(tempDir, "vault_mcp.toml")
	tomlConfig := "port = 9002\nstartOnStartup = false\n\n[tools]\nexecute_command = false\n\n[vault]\nroot = \"/srv/vault\"\n"
	if err := os.WriteFile(tomlPath, []byte(tomlConfig), 0644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err = LoadConfig(tomlPath)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Port != 9002 || cfg.StartOnStartup || cfg.ToolEnabled("execute_command") || cfg.Vault.Root != "/srv/vault" {
		t.Fatalf("unexpected toml config: %+v", cfg)
	}
}

func TestSaveConfigRoundTripsEachFormat(t *testing.T) {
	tempDir := t.TempDir()
	for _, name := range []string{"cfg.json", "cfg.yaml", "cfg.toml"} {
		cfg := NewConfig()
		cfg.Port = 30000
		cfg.Tools["rename_file"] = false
		path := filepath.Join(tempDir, "nested", name)
		if err := SaveConfig(cfg, path); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if loaded.Port != 30000 || loaded.ToolEnabled("rename_file") {
			t.Fatalf("%s did not round trip: %+v", name, loaded)
		}
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid_config.json")
	if err := os.WriteFile(configPath, []byte(`{"port": 8080,`), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("Expected error for malformed JSON")
	}
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vault_mcp.json")
	if err := os.WriteFile(configPath, []byte(`{"port": 70000}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := LoadConfig(configPath)
	if !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
}

func TestParsePort(t *testing.T) {
	valid := map[string]int{"1": 1, " 27123 ": 27123, "65535": 65535}
	for raw, want := range valid {
		got, err := ParsePort(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePort(%q) = %d, %v; want %d", raw, got, err, want)
		}
	}
	for _, raw := range []string{"", "0", "-1", "65536", "abc", "80.5"} {
		if _, err := ParsePort(raw); !errors.Is(err, ErrInvalidPort) {
			t.Fatalf("ParsePort(%q) expected ErrInvalidPort, got %v", raw, err)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vault_mcp.json")
	if err := os.WriteFile(configPath, []byte(`{"port": 8080}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MCP_PORT", "9100")
	t.Setenv("MCP_HOST", "0.0.0.0")
	t.Setenv("MCP_DISABLED_TOOLS", "rename_file, delete_file")
	t.Setenv("MCP_START_ON_STARTUP", "false")
	t.Setenv("VAULT_ROOT", tempDir)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 9100 || cfg.Host != "0.0.0.0" || cfg.StartOnStartup {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.ToolEnabled("rename_file") || cfg.ToolEnabled("delete_file") {
		t.Fatalf("expected tools disabled via env: %v", cfg.Tools)
	}
	if cfg.Vault.Root != tempDir {
		t.Fatalf("expected vault root %s, got %s", tempDir, cfg.Vault.Root)
	}

	t.Setenv("MCP_PORT", "not-a-port")
	cfg, err = LoadConfig(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("invalid MCP_PORT should be ignored, got %d", cfg.Port)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := NewConfig()
	cfg.Tools["read_file"] = true
	clone := cfg.Clone()
	clone.Tools["read_file"] = false
	if !cfg.Tools["read_file"] {
		t.Fatal("clone should not share the tools map")
	}
}

func TestResolveConfigPathPrefersEnv(t *testing.T) {
	t.Setenv("MCP_CONFIG_PATH", "/etc/vault-mcp/custom.yaml")
	path, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("resolve config path: %v", err)
	}
	if path != "/etc/vault-mcp/custom.yaml" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestEnsureDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "vault_mcp.json")
	if err := EnsureDefaultConfig(path); err != nil {
		t.Fatalf("ensure default config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}

	if err := os.WriteFile(path, []byte(`{"port": 1234}`), 0644); err != nil {
		t.Fatalf("overwrite config: %v", err)
	}
	if err := EnsureDefaultConfig(path); err != nil {
		t.Fatalf("ensure existing config: %v", err)
	}
	cfg, err = LoadConfig(path)
	if err != nil || cfg.Port != 1234 {
		t.Fatalf("existing config should be left alone: %+v, %v", cfg, err)
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "vault_mcp.json")
	if err := os.WriteFile(path, []byte(`{"port": 8080}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var mu sync.Mutex
	var ports []int
	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		ports = append(ports, cfg.Port)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.SetDebounce(20 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		w.Run(t.Context())
		close(done)
	}()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(tempDir, "other.json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"port": 8181}`), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(ports)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close watcher: %v", err)
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(ports) == 0 || ports[len(ports)-1] != 8181 {
		t.Fatalf("expected reload with port 8181, got %v", ports)
	}
}
