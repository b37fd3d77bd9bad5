package coredump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// rawManifest is the JSON document emitted in raw mode for tooling that
// does not need ELF-core compatibility.
type rawManifest struct {
	Registers map[string]string `json:"registers"`
	Regions   []rawRegion       `json:"regions"`
}

type rawRegion struct {
	Name string `json:"name"`
	Base string `json:"base"`
	Size int    `json:"size"`
	File string `json:"file"`
}

// WriteRaw emits the raw-mode alternative: one JSON manifest at
// <dir>/<prefix>.json with hex register values, plus one binary file per
// region named <prefix>.<region>.bin. Returns the manifest path.
func WriteRaw(dir, prefix string, regs Registers, regions []Region) (string, error) {
	manifest := rawManifest{
		Registers: make(map[string]string, NumRegisters),
		Regions:   make([]rawRegion, 0, len(regions)),
	}
	for i := 0; i < NumRegisters; i++ {
		manifest.Registers[RegisterName(i)] = fmt.Sprintf("0x%08x", regs[i])
	}

	for i, r := range regions {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("region%d", i)
		}
		binName := fmt.Sprintf("%s.%s.bin", prefix, name)
		binPath := filepath.Join(dir, binName)
		if err := os.WriteFile(binPath, r.Data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write region %s: %w", name, err)
		}
		manifest.Regions = append(manifest.Regions, rawRegion{
			Name: name,
			Base: fmt.Sprintf("0x%08x", r.Base),
			Size: len(r.Data),
			File: binName,
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	manifestPath := filepath.Join(dir, prefix+".json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifestPath, nil
}
