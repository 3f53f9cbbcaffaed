package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("ARBOR_TEST_NAME", "from-env")
	p := writeFile(t, "name: ${ARBOR_TEST_NAME}\nport: 9000\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Name != "from-env" || s.Port != 9000 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadIfExists_Missing(t *testing.T) {
	s := sample{Port: 1}
	read, err := LoadIfExists(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if read || s.Port != 1 {
		t.Errorf("read=%v sample=%+v", read, s)
	}

	bad := sample{}
	if _, err := LoadIfExists(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadIfExists_Present(t *testing.T) {
	p := writeFile(t, "port: 7\n")
	s := sample{Port: 1}
	read, err := LoadIfExists(p, &s)
	if err != nil || !read || s.Port != 7 {
		t.Errorf("read=%v err=%v sample=%+v", read, err, s)
	}
}
