package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestExpandGlobs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"server.pem", "client.pem", "notes.txt", ".env"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "deep.key"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write deep.key: %v", err)
	}

	tests := []struct {
		name       string
		candidates []string
		want       []string
	}{
		{
			name:       "plain candidate passes through",
			candidates: []string{"notes.txt"},
			want:       []string{"notes.txt"},
		},
		{
			name:       "star expands to absolute matches",
			candidates: []string{"*.pem"},
			want:       []string{filepath.Join(root, "client.pem"), filepath.Join(root, "server.pem")},
		},
		{
			name:       "dotfiles are matched",
			candidates: []string{".env*"},
			want:       []string{filepath.Join(root, ".env")},
		},
		{
			name:       "slash forces resolution against the root",
			candidates: []string{"sub/deep.key"},
			want:       []string{filepath.Join(root, "sub", "deep.key")},
		},
		{
			name:       "glob below a subdirectory",
			candidates: []string{"sub/*.key"},
			want:       []string{filepath.Join(root, "sub", "deep.key")},
		},
		{
			name:       "no match keeps the literal",
			candidates: []string{"*.zzz"},
			want:       []string{"*.zzz"},
		},
		{
			name:       "bad pattern keeps the literal",
			candidates: []string{"["},
			want:       []string{"["},
		},
		{
			name:       "overlapping globs deduplicate",
			candidates: []string{"*.pem", "*pem"},
			want:       []string{filepath.Join(root, "client.pem"), filepath.Join(root, "server.pem")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandGlobs(root, tt.candidates)
			sort.Strings(got)
			sort.Strings(tt.want)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandGlobs(%v) = %v, want %v", tt.candidates, got, tt.want)
			}
		})
	}

	if got := ExpandGlobs(root, nil); len(got) != 0 {
		t.Errorf("ExpandGlobs(nil) = %v, want empty", got)
	}
}
