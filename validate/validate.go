// Command validate checks the JSON team catalogs and YAML config files in a
// directory (../configs by default). It checks:
//   - Catalog JSON structure, codes, names, colors and founding years
//   - Duplicate team codes
//   - Config YAML structure and field ranges (backend URL, heartbeat,
//     reconnect window, port, log level, default season)
//   - Config references: a teams_file must exist and itself be a valid catalog
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/gridiron-odds/matchup/config"
	"github.com/wricardo/gridiron-odds/matchup/teams"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// failAll records every line of a joined error.
func (r *ValidationResult) failAll(err error) {
	for _, line := range errorLines(err) {
		r.fail("%s", line)
	}
}

// validateCatalog loads and validates a team catalog JSON file.
func validateCatalog(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	catalog, err := teams.Parse(data)
	if err != nil {
		result.failAll(err)
		return result
	}

	result.info("%d teams", catalog.Len())

	var late []string
	for _, t := range catalog.All() {
		if t.FirstSeason() > teams.EarliestSeason {
			late = append(late, fmt.Sprintf("%s (%d)", t.Code, t.FirstSeason()))
		}
	}
	if len(late) > 0 {
		result.info("Founded after %d: %s", teams.EarliestSeason, strings.Join(late, ", "))
	}

	return result
}

// validateConfig loads and validates a YAML config file. Environment
// overrides are not applied.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	cfg, err := config.Parse(data)
	if err != nil {
		result.fail("Invalid YAML: %v", err)
		return result
	}

	if err := cfg.Validate(); err != nil {
		result.failAll(err)
	} else {
		result.info("Backend: %s", cfg.Backend.URL)
	}

	if cfg.TeamsFile != "" {
		path := cfg.TeamsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(filePath), path)
		}
		ref := validateCatalog(path)
		if !ref.Valid {
			result.fail("teams_file %s is invalid", cfg.TeamsFile)
			for _, e := range ref.Errors {
				if !strings.HasPrefix(e, "✓") {
					result.fail("  %s", e)
				}
			}
		} else {
			result.info("teams_file %s is valid", cfg.TeamsFile)
		}
	}

	return result
}

// validateFile dispatches on extension.
func validateFile(filePath string) (ValidationResult, bool) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return validateCatalog(filePath), true
	case ".yaml", ".yml":
		return validateConfig(filePath), true
	}
	return ValidationResult{}, false
}

// errorLines flattens joined and wrapped errors into one message per line.
func errorLines(err error) []string {
	var lines []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimPrefix(strings.TrimSpace(line), teams.ErrInvalidCatalog.Error()+": ")
		line = strings.TrimPrefix(line, config.ErrInvalidConfig.Error()+": ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, err.Error())
	}
	return lines
}

// main scans the config directory (first argument, default ../configs) and
// validates each file, printing a concise report and exiting with non-zero
// status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	entries, err := os.ReadDir(configDir)
	if err != nil {
		fmt.Printf("Error reading config directory: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	checked := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		result, ok := validateFile(filepath.Join(configDir, entry.Name()))
		if !ok {
			continue
		}
		checked++

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	switch {
	case checked == 0:
		fmt.Println("No catalog or config files found")
	case allValid:
		fmt.Println("✅ All files are valid!")
	default:
		fmt.Println("❌ Some files have errors")
		os.Exit(1)
	}
}
