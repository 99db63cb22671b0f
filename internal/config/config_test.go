package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFilterTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filters.yaml")
	if err := ioutil.WriteFile(path, []byte("U: 0\nB: 1\nV: 2\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	table, err := LoadFilterTable(path)
	if err != nil {
		t.Fatalf("LoadFilterTable: %v", err)
	}
	slot, ok := table.SlotFor("V")
	if !ok || slot != 2 {
		t.Errorf("want V at slot 2, got %d, %v", slot, ok)
	}
}

func TestLoadDaemonConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccd_server.yaml")
	yaml := `
camera:
  addr: "192.168.1.50:4000"
  serial: false
mount:
  addr: "192.168.1.51:4000"
tcp_port: 6600
http_port: 6601
run_dir: "/var/run/astrosystem"
`
	if err := ioutil.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Addr != "192.168.1.50:4000" {
		t.Errorf("want camera addr, got %q", cfg.Camera.Addr)
	}
	if cfg.TCPPort != 6600 {
		t.Errorf("want tcp_port 6600, got %d", cfg.TCPPort)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(os.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("want error loading a missing config file")
	}
}
