package pkg

import (
	"os"
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	expected := "folio"
	if Name != expected {
		t.Errorf("Expected Name to be %q, got %q", expected, Name)
	}
}

func TestVersion(t *testing.T) {
	buf, err := os.ReadFile("VERSION")
	if err != nil {
		t.Fatalf("Failed to read VERSION file: %v", err)
	}

	if strings.TrimSpace(Version) != strings.TrimSpace(string(buf)) {
		t.Errorf("Expected Version %q, got %q", buf, Version)
	}

	if strings.Count(strings.TrimSpace(Version), ".") != 2 {
		t.Errorf("Version %q is not major.minor.patch", Version)
	}
}

func TestEnvVar(t *testing.T) {
	tests := []struct {
		setting string
		want    string
	}{
		{"template-path", "FOLIO_TEMPLATE_PATH"},
		{"log.level", "FOLIO_LOG_LEVEL"},
		{"workers", "FOLIO_WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			if got := EnvVar(tt.setting); got != tt.want {
				t.Errorf("EnvVar(%q) = %q, want %q", tt.setting, got, tt.want)
			}
		})
	}
}
