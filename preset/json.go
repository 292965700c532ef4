package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-spatial/spatial"
)

// File is the JSON schema for engine presets.
type File struct {
	Voices           *int                `json:"voices"`
	HRTFBinPath      string              `json:"hrtf_bin_path"`
	SfxVolume        *float32            `json:"sfx_volume"`
	MusicVolume      *float32            `json:"music_volume"`
	MasterVolume     *float32            `json:"master_volume"`
	RefDistance      *float64            `json:"ref_distance"`
	Rolloff          *float64            `json:"rolloff"`
	CrossfadeSeconds *float64            `json:"crossfade_seconds"`
	Sources          map[string][]string `json:"sources"`
}

// Settings holds resolved engine preset values.
type Settings struct {
	Voices           int
	HRTFBinPath      string
	SfxVolume        float32
	MusicVolume      float32
	MasterVolume     float32
	RefDistance      float64
	Rolloff          float64
	CrossfadeSeconds float64

	// Sources maps source ids to their asset paths (alternate takes).
	Sources map[int][]string
}

// NewDefaultSettings creates default settings.
func NewDefaultSettings() *Settings {
	return &Settings{
		Voices:           16,
		SfxVolume:        1.0,
		MusicVolume:      1.0,
		MasterVolume:     1.0,
		RefDistance:      1.0,
		Rolloff:          1.0,
		CrossfadeSeconds: 0.15,
		Sources:          make(map[int][]string),
	}
}

// PannerOptions translates the preset's spatialization values into
// panner options.
func (s *Settings) PannerOptions() spatial.Options {
	return spatial.Options{
		CrossfadeSeconds: s.CrossfadeSeconds,
		RefDistance:      s.RefDistance,
		Rolloff:          s.Rolloff,
	}
}

// LoadJSON loads a preset JSON file and applies it on top of defaults.
// Relative asset paths resolve against the preset file's directory.
func LoadJSON(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	s := NewDefaultSettings()
	if err := ApplyFile(s, &f); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if s.HRTFBinPath != "" && !filepath.IsAbs(s.HRTFBinPath) {
		s.HRTFBinPath = filepath.Clean(filepath.Join(base, s.HRTFBinPath))
	}
	for id, paths := range s.Sources {
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				paths[i] = filepath.Clean(filepath.Join(base, p))
			}
		}
		s.Sources[id] = paths
	}
	return s, nil
}

// ApplyFile applies a parsed preset file onto existing settings.
func ApplyFile(dst *Settings, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination settings")
	}
	if f == nil {
		return nil
	}

	if f.Voices != nil {
		if *f.Voices < 1 {
			return fmt.Errorf("voices must be >= 1")
		}
		dst.Voices = *f.Voices
	}
	if f.HRTFBinPath != "" {
		dst.HRTFBinPath = strings.TrimSpace(f.HRTFBinPath)
	}
	if err := applyVolume(&dst.SfxVolume, f.SfxVolume, "sfx_volume"); err != nil {
		return err
	}
	if err := applyVolume(&dst.MusicVolume, f.MusicVolume, "music_volume"); err != nil {
		return err
	}
	if err := applyVolume(&dst.MasterVolume, f.MasterVolume, "master_volume"); err != nil {
		return err
	}
	if f.RefDistance != nil {
		if *f.RefDistance <= 0 {
			return fmt.Errorf("ref_distance must be > 0")
		}
		dst.RefDistance = *f.RefDistance
	}
	if f.Rolloff != nil {
		if *f.Rolloff < 0 {
			return fmt.Errorf("rolloff must be >= 0")
		}
		dst.Rolloff = *f.Rolloff
	}
	if f.CrossfadeSeconds != nil {
		if *f.CrossfadeSeconds <= 0 {
			return fmt.Errorf("crossfade_seconds must be > 0")
		}
		dst.CrossfadeSeconds = *f.CrossfadeSeconds
	}

	if len(f.Sources) == 0 {
		return nil
	}
	if dst.Sources == nil {
		dst.Sources = make(map[int][]string)
	}

	keys := make([]string, 0, len(f.Sources))
	for k := range f.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		id, err := strconv.Atoi(k)
		if err != nil || id < 0 {
			return fmt.Errorf("invalid source id %q (expected a non-negative integer)", k)
		}
		paths := f.Sources[k]
		if len(paths) == 0 {
			return fmt.Errorf("sources[%d] must list at least one path", id)
		}
		dst.Sources[id] = append([]string(nil), paths...)
	}
	return nil
}

func applyVolume(dst *float32, src *float32, name string) error {
	if src == nil {
		return nil
	}
	if *src < 0 || *src > 1 {
		return fmt.Errorf("%s must be in [0,1]", name)
	}
	*dst = *src
	return nil
}
