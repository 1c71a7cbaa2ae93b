package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/amirbrooks/daynote/internal/recurring"
	"github.com/amirbrooks/daynote/internal/store"
	"gopkg.in/yaml.v3"
)

type checklistFile struct {
	Checklist []recurring.Definition `yaml:"checklist"`
}

// LoadChecklist reads the checklist definitions from path. A missing file
// yields the built-in checklist.
func LoadChecklist(path string) ([]recurring.Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return append([]recurring.Definition(nil), recurring.DefaultChecklist...), nil
		}
		return nil, err
	}
	var f checklistFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: checklist %s: %v", store.ErrInvalid, path, err)
	}
	for _, d := range f.Checklist {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("checklist %s: %w", path, err)
		}
	}
	return f.Checklist, nil
}

// EncodeChecklist renders definitions in the checklist file format.
func EncodeChecklist(defs []recurring.Definition) ([]byte, error) {
	return yaml.Marshal(checklistFile{Checklist: defs})
}

// WriteDefaults creates the default config and checklist files under root.
// Existing files are left alone; the paths actually written are returned.
func WriteDefaults(root, configPath string) ([]string, error) {
	cfg := Default()
	conf, err := cfg.Encode()
	if err != nil {
		return nil, err
	}
	list, err := EncodeChecklist(recurring.DefaultChecklist)
	if err != nil {
		return nil, err
	}
	files := []struct {
		path string
		data []byte
	}{
		{configPath, conf},
		{cfg.Vault(root).Resolve(cfg.ChecklistFile), list},
	}
	var written []string
	for _, f := range files {
		ok, err := createFile(f.path, f.data)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, f.path)
		}
	}
	return written, nil
}

// createFile writes data to path unless the file already exists.
func createFile(path string, data []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}
