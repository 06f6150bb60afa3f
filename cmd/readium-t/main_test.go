package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PDF", "c.epub"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		arg     string
		want    []string
		wantErr bool
	}{
		{"glob", filepath.Join(dir, "*"), []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.PDF")}, false},
		{"comma separated", filepath.Join(dir, "a.pdf") + ", " + filepath.Join(dir, "c.epub"), []string{filepath.Join(dir, "a.pdf")}, false},
		{"only non pdf", filepath.Join(dir, "c.epub"), nil, true},
		{"missing", filepath.Join(dir, "missing.pdf"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandFiles(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expandFiles = %v, want %v", got, tt.want)
			}
		})
	}
}
