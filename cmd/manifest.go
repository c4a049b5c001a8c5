package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kesrev/rmanfetch/internal/output"
	"github.com/kesrev/rmanfetch/internal/rman"
)

// sourceFor picks the ManifestSource for path by extension: the
// proprietary binary ".manifest" container is an external
// collaborator this build doesn't decode (see
// internal/rman/manifest_binary.go); anything else is read as the
// json export format.
func sourceFor(path string) rman.ManifestSource {
	if strings.HasSuffix(path, ".manifest") {
		return rman.BinarySource{}
	}
	return rman.JSONSource{}
}

func loadManifestFile(path string) (*rman.FileList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	list, err := sourceFor(path).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	if err := list.Sanitize(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return list, nil
}

// loadPlan loads --manifest (required), applies --upgrade elision,
// --path/--lang filtering, and the --exist existence skip, returning
// the resulting FileList ready for listing or download.
func loadPlan() (*rman.FileList, error) {
	if manifestPath == "" {
		return nil, fmt.Errorf("--manifest is required")
	}
	list, err := loadManifestFile(manifestPath)
	if err != nil {
		return nil, err
	}

	if upgradePath != "" {
		old, err := loadManifestFile(upgradePath)
		if err != nil {
			return nil, fmt.Errorf("loading --upgrade manifest: %w", err)
		}
		before := len(list.Files)
		list.RemoveUpToDate(old)
		output.PrintDebug(fmt.Sprintf("upgrade elision: %d of %d files already up to date", before-len(list.Files), before))
	}

	if pathFilter != "" {
		pat, err := regexp.Compile(pathFilter)
		if err != nil {
			return nil, fmt.Errorf("--path: %w", err)
		}
		list.FilterPath(pat)
	}
	if len(langs) > 0 {
		list.FilterLangs(langs)
	}

	if verifyFlag {
		output.PrintWarning("--verify requests hash-based up-to-date checks, which this build does not implement; proceeding without it")
	}
	if existFlag {
		kept := list.Files[:0]
		skipped := 0
		for _, f := range list.Files {
			if _, err := os.Stat(joinOutput(f.Path)); err == nil {
				skipped++
				continue
			}
			kept = append(kept, f)
		}
		list.Files = kept
		if skipped > 0 {
			output.PrintDebug(fmt.Sprintf("--exist: skipped %d file(s) already present", skipped))
		}
	}

	return list, nil
}

func joinOutput(relPath string) string {
	return filepath.Join(outputDir, filepath.FromSlash(relPath))
}
