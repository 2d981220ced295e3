package organizations

import (
	"strings"
	"testing"
)

func TestPersonalSlug(t *testing.T) {
	tests := []struct {
		email      string
		wantPrefix string
	}{
		{"pat@example.com", "pat-"},
		{"Pat.Smith+work@example.com", "pat-smith-work-"},
		{"@example.com", "workspace-"},
		{"", "workspace-"},
		{"averyveryverylongemaillocalpart@example.com", "averyveryverylongemaillo-"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got := personalSlug(tt.email)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("personalSlug(%q) = %q, want prefix %q", tt.email, got, tt.wantPrefix)
			}
			if len(got) != len(tt.wantPrefix)+8 {
				t.Fatalf("suffix length wrong: %q", got)
			}
			if got != strings.ToLower(got) {
				t.Fatalf("slug not lowercase: %q", got)
			}
		})
	}

	if personalSlug("pat@example.com") == personalSlug("pat@example.com") {
		t.Fatal("two provisioned slugs for the same email must differ")
	}
}
