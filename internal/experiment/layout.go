// Package experiment validates and builds experiment directory trees and
// materializes per-region configuration files from templates.
//
// An experiment directory contains three required subdirectories:
// postprocessing_scripts/ holding numbered stage scripts, template_configs/
// holding seed JSON configs, and states/ holding one subdirectory per region
// into which read-only materialized configs are written.
package experiment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Required subdirectories of a valid experiment.
const (
	PostprocessingScriptsDir = "postprocessing_scripts"
	TemplateConfigsDir       = "template_configs"
	StatesDir                = "states"
)

// RequiredDirs lists the required subdirectories in validation order.
var RequiredDirs = []string{PostprocessingScriptsDir, TemplateConfigsDir, StatesDir}

var (
	// ErrNotFound reports an experiment directory that exists in neither
	// candidate location.
	ErrNotFound = errors.New("experiment not found")
	// ErrMissingDirectory reports a structurally invalid experiment.
	ErrMissingDirectory = errors.New("missing experiment component")
	// ErrNoTemplates reports an empty template_configs directory.
	ErrNoTemplates = errors.New("no template configs found")
	// ErrUnknownRegion reports a states/ subdirectory whose name is not a
	// known region code.
	ErrUnknownRegion = errors.New("unknown region")
)

// ResolvePath locates an experiment by name, checking <workingDir>/<name>
// and then <workingDir>/exp/<name>. Both attempted paths are named in the
// error when neither exists.
func ResolvePath(name, workingDir string) (string, error) {
	direct := filepath.Join(workingDir, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}
	nested := filepath.Join(workingDir, "exp", name)
	if _, err := os.Stat(nested); err == nil {
		return nested, nil
	}
	return "", fmt.Errorf("%w: checked %s and %s; place the experiment at the top "+
		"level of your working area or within an exp/ folder", ErrNotFound, direct, nested)
}

// EnsureLayout creates any missing required subdirectory of dir, including
// intermediate directories. Idempotent and non-destructive. Returns the
// paths it created.
func EnsureLayout(dir string, required []string) ([]string, error) {
	var created []string
	for _, component := range required {
		path := filepath.Join(dir, component)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return created, fmt.Errorf("creating %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}

// ValidateLayout checks that dir and every required component exist,
// reporting the first absent one.
func ValidateLayout(dir string, required []string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: unable to find %s to validate", ErrMissingDirectory, dir)
	}
	for _, component := range required {
		if _, err := os.Stat(filepath.Join(dir, component)); err != nil {
			return fmt.Errorf("%w: unable to find %s within %s",
				ErrMissingDirectory, component, dir)
		}
	}
	return nil
}

// LocateTemplateConfigs returns the template config paths of an experiment.
// Explicitly given paths are first copied into the template subdirectory
// unless they already live there, so re-running with in-place paths is safe.
// Afterwards every regular file in the template subdirectory counts as a
// template; an empty directory is an error.
func LocateTemplateConfigs(experimentDir string, explicit []string) ([]string, error) {
	templateDir := filepath.Join(experimentDir, TemplateConfigsDir)
	for _, src := range explicit {
		dst := filepath.Join(templateDir, filepath.Base(src))
		if samePath(src, dst) {
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("copying template config %s to %s: %w", src, dst, err)
		}
	}

	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", templateDir, err)
	}
	var templates []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			templates = append(templates, filepath.Join(templateDir, entry.Name()))
		}
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: %s is empty, pass template paths explicitly or "+
			"place configs in the %s directory of your experiment",
			ErrNoTemplates, templateDir, TemplateConfigsDir)
	}
	return templates, nil
}

func samePath(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
