// Package defaults loads the default profile: initial metrics, decay rates and
// the starter task set used to seed a fresh store or restore defaults.
package defaults

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/state"
	"github.com/Ting2004/katachi/internal/tasks"
)

//go:embed default_profile.json
var embeddedProfile []byte

//go:embed default_tasks.json
var embeddedTasks []byte

// Profile is the resolved default configuration.
type Profile struct {
	Metrics    map[state.Key]float64
	DecayRates map[state.Key]float64
	Tasks      []tasks.Entry
}

type profileFile struct {
	Metrics    map[string]float64 `json:"metrics" yaml:"metrics"`
	DecayRates map[string]float64 `json:"decay_rates" yaml:"decay_rates"`
}

// Builtin returns the embedded profile.
func Builtin() (*Profile, error) {
	return Load("", "")
}

// Load reads a profile file and a tasks file. An empty path selects the
// embedded default for that half. Files ending in .yaml or .yml are parsed as
// YAML, anything else as JSON.
func Load(profilePath, tasksPath string) (*Profile, error) {
	var pf profileFile
	if err := decodeFile(profilePath, embeddedProfile, &pf); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	var recs snapshot.Tasks
	if err := decodeFile(tasksPath, embeddedTasks, &recs); err != nil {
		return nil, fmt.Errorf("load default tasks: %w", err)
	}

	p := &Profile{}
	var err error
	if p.Metrics, err = parseMetrics(pf.Metrics, "metrics"); err != nil {
		return nil, err
	}
	if p.DecayRates, err = parseMetrics(pf.DecayRates, "decay_rates"); err != nil {
		return nil, err
	}
	cat, err := tasks.FromRecords(recs, tasks.Date{})
	if err != nil {
		return nil, fmt.Errorf("default tasks: %w", err)
	}
	p.Tasks = cat.List()
	for i := range p.Tasks {
		p.Tasks[i].Completed = false
		p.Tasks[i].Count = 0
	}
	return p, nil
}

func parseMetrics(raw map[string]float64, field string) (map[state.Key]float64, error) {
	out := make(map[state.Key]float64, len(raw))
	for name, v := range raw {
		k := state.Key(name)
		if !k.Valid() {
			return nil, fmt.Errorf("profile %s: unknown metric %q", field, name)
		}
		out[k] = v
	}
	return out, nil
}

func decodeFile(path string, fallback []byte, v any) error {
	data := fallback
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return err
		}
	}
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse %s: %w", displayName(path), err)
		}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", displayName(path), err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func displayName(path string) string {
	if path == "" {
		return "embedded defaults"
	}
	return path
}
