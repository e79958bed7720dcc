package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitCLI(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", filepath.Join(home, "AppData", "Roaming"))
	t.Setenv("LOCALAPPDATA", filepath.Join(home, "AppData", "Local"))

	for i := 0; i < 2; i++ {
		if err := InitCLI(); err != nil {
			t.Fatalf("InitCLI() call %d error = %v", i+1, err)
		}
	}

	entries, err := os.ReadDir(home)
	if err != nil || len(entries) == 0 {
		t.Errorf("InitCLI() created nothing under %s: %v", home, err)
	}
}

func TestInitCLIUnwritableHome(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores permissions")
	}
	home := filepath.Join(t.TempDir(), "ro")
	os.MkdirAll(home, 0500)
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", home)
	t.Setenv("LOCALAPPDATA", home)

	if err := InitCLI(); err == nil {
		t.Error("expected an error for an unwritable home")
	}
}
