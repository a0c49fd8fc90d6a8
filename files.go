package main

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed files.yaml
var embeddedFiles []byte

// VirtualFile is an entry of the simulated home directory
type VirtualFile struct {
	Name    string `yaml:"name"`
	Dir     bool   `yaml:"dir"`
	Content string `yaml:"content"`
}

// VirtualFS is the read-only directory behind ls and cat
type VirtualFS struct {
	files []VirtualFile
}

// LoadVirtualFS parses the embedded catalog
func LoadVirtualFS() (*VirtualFS, error) {
	return parseVirtualFS(embeddedFiles)
}

func parseVirtualFS(data []byte) (*VirtualFS, error) {
	var files []VirtualFile
	if err := yaml.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("failed to parse file catalog: %w", err)
	}
	return &VirtualFS{files: files}, nil
}

// Listing renders the directory the way ls prints it
func (v *VirtualFS) Listing() string {
	names := make([]string, 0, len(v.files))
	for _, f := range v.files {
		if f.Dir {
			names = append(names, f.Name+"/")
		} else {
			names = append(names, f.Name)
		}
	}
	return strings.Join(names, "  ")
}

// Read returns a file's content, or a cat-style error
func (v *VirtualFS) Read(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cat: missing file operand")
	}
	lookup := strings.TrimSuffix(strings.TrimPrefix(name, "./"), "/")
	for _, f := range v.files {
		if f.Name != lookup {
			continue
		}
		if f.Dir {
			return "", fmt.Errorf("cat: %s: Is a directory", name)
		}
		return strings.TrimRight(f.Content, "\n"), nil
	}
	return "", fmt.Errorf("cat: %s: No such file or directory", name)
}
