package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"scenarios/internal/regions"
)

// Template config keys rewritten during materialization. Everything else in
// a template passes through untouched.
const (
	keyRegions           = "REGIONS"
	keyPopSize           = "POP_SIZE"
	keyInitialInfections = "INITIAL_INFECTIONS"
)

// RebuildRegionDirs prepares one subdirectory per region code under
// statesDir. With clearExisting the whole statesDir tree is removed first,
// so two consecutive runs yield the same set of empty region directories.
// Without it only missing region directories are created; an existing empty
// directory of the same name is recreated fresh, a non-empty one is kept
// as-is (stale files from earlier templates may survive inside it), and
// anything else occupying a region's path is an error.
func RebuildRegionDirs(statesDir string, regionCodes []string, clearExisting bool) error {
	if clearExisting {
		if err := os.RemoveAll(statesDir); err != nil {
			return fmt.Errorf("clearing %s: %w", statesDir, err)
		}
	}
	if err := os.MkdirAll(statesDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", statesDir, err)
	}
	for _, code := range regionCodes {
		dir := filepath.Join(statesDir, code)
		if _, err := os.Stat(dir); err == nil {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("inspecting region directory %s: %w", dir, err)
			}
			if len(entries) > 0 {
				continue
			}
			if err := os.Remove(dir); err != nil {
				return fmt.Errorf("refreshing region directory %s: %w", dir, err)
			}
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("creating region directory %s: %w", dir, err)
		}
	}
	return nil
}

// Materialize writes one read-only config per (region subdirectory,
// template) pair. Every subdirectory basename of statesDir must resolve
// through the catalog; a single unknown region aborts the whole pass.
// Returns the paths written.
func Materialize(statesDir string, templatePaths []string, catalog *regions.Catalog) ([]string, error) {
	entries, err := os.ReadDir(statesDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", statesDir, err)
	}
	var written []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := catalog.LookupByCode(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: states subdirectory %q is not a known region code",
				ErrUnknownRegion, entry.Name())
		}
		for _, templatePath := range templatePaths {
			dst := filepath.Join(statesDir, entry.Name(), filepath.Base(templatePath))
			if err := materializeOne(templatePath, dst, rec); err != nil {
				return nil, err
			}
			written = append(written, dst)
		}
	}
	return written, nil
}

func materializeOne(templatePath, dst string, rec regions.Record) error {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("reading template %s: %w", templatePath, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing template %s: %w", templatePath, err)
	}

	doc[keyRegions] = []string{rec.DisplayName}
	if templatePop, ok := asNumber(doc[keyPopSize]); ok {
		if templateInf, ok := asNumber(doc[keyInitialInfections]); ok {
			if templatePop == 0 {
				return fmt.Errorf("template %s: %s is zero, cannot derive %s from it",
					templatePath, keyPopSize, keyInitialInfections)
			}
			// Keep the template's infection share of the population.
			scaled, err := threeSigFigs(float64(rec.Population) * (templateInf / templatePop))
			if err != nil {
				return fmt.Errorf("rescaling %s for %s: %w", keyInitialInfections, rec.Code, err)
			}
			doc[keyInitialInfections] = scaled
		}
		pop, err := threeSigFigs(float64(rec.Population))
		if err != nil {
			return fmt.Errorf("rescaling %s for %s: %w", keyPopSize, rec.Code, err)
		}
		doc[keyPopSize] = pop
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding config for %s: %w", rec.Code, err)
	}

	// Earlier runs leave a read-only file here; it has to be made
	// writable before removal or the overwrite fails with EACCES.
	if _, err := os.Stat(dst); err == nil {
		if err := os.Chmod(dst, 0o777); err != nil {
			return fmt.Errorf("unlocking previous config %s: %w", dst, err)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("removing previous config %s: %w", dst, err)
		}
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o444); err != nil {
		return fmt.Errorf("writing config %s: %w", dst, err)
	}
	return os.Chmod(dst, 0o444)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// threeSigFigs rounds to three significant figures through the same
// format-then-parse path the original golden files were produced with, then
// truncates to an integer. Not equivalent to numeric rounding at every
// boundary value, so the string round-trip stays.
func threeSigFigs(x float64) (int64, error) {
	// An Inf or NaN survives the %.3g round-trip and converts to a garbage
	// integer, so it has to be rejected up front.
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return 0, fmt.Errorf("cannot round non-finite value %v to 3 significant figures", x)
	}
	f, err := strconv.ParseFloat(fmt.Sprintf("%.3g", x), 64)
	if err != nil {
		return 0, fmt.Errorf("rounding %v to 3 significant figures: %w", x, err)
	}
	return int64(f), nil
}
