// Package config loads named bring-up profiles: which controller to bring
// up and the sdmmc.Config to use. A table of common Tegra X1 layouts is
// built in; more can be loaded from YAML.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"mmcinit/sdmmc"
)

//go:embed boards.yaml
var rawProfiles []byte

var (
	ErrUnknownController = errors.New("unknown controller")
	ErrUnknownMode       = errors.New("unknown mode")
	ErrBadBusWidth       = errors.New("bus width must be 1, 4 or 8")
	ErrUnknownVoltage    = errors.New("unknown voltage")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrDuplicateProfile  = errors.New("duplicate profile")
)

var busWidths = []int{1, 4, 8}

// Profile is one named bring-up target. Empty fields take the controller's
// defaults (see sdmmc.DefaultConfig).
type Profile struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	Controller   string `yaml:"controller"`
	Mode         string `yaml:"mode,omitempty"`
	BusWidth     int    `yaml:"bus_width,omitempty"`
	Voltage      string `yaml:"voltage,omitempty"`
	NonRemovable *bool  `yaml:"non_removable,omitempty"`
}

// Profiles is an ordered profile table.
type Profiles []Profile

// Builtin returns the embedded profile table.
func Builtin() Profiles {
	p, err := Load(bytes.NewReader(rawProfiles))
	if err != nil {
		panic("config: embedded boards.yaml: " + err.Error())
	}
	return p
}

// Load parses a profile document and validates every entry.
func Load(r io.Reader) (Profiles, error) {
	var doc struct {
		Profiles Profiles `yaml:"profiles"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	seen := make(map[string]bool)
	for i := range doc.Profiles {
		p := &doc.Profiles[i]
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d: missing name", i)
		}
		p.Name = strings.ToLower(p.Name)
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Name)
		}
		seen[p.Name] = true
		if err := p.applyDefaults(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}
	return doc.Profiles, nil
}

// LoadFile reads profiles from path.
func LoadFile(path string) (Profiles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// applyDefaults fills unset fields from the controller's defaults and
// normalizes the rest, so a loaded profile always resolves.
func (p *Profile) applyDefaults() error {
	ctrl, err := ParseController(p.Controller)
	if err != nil {
		return err
	}
	def := sdmmc.DefaultConfig(ctrl)
	p.Controller = ctrl.String()

	if p.Mode == "" {
		p.Mode = def.Mode.String()
	}
	if _, err := ParseMode(p.Mode); err != nil {
		return err
	}
	p.Mode = strings.ToLower(p.Mode)

	if p.BusWidth == 0 {
		p.BusWidth = int(def.BusWidth)
	}
	if !slices.Contains(busWidths, p.BusWidth) {
		return fmt.Errorf("%w: %d", ErrBadBusWidth, p.BusWidth)
	}

	if p.Voltage == "" {
		p.Voltage = def.Voltage.String()
	}
	v, err := ParseVoltage(p.Voltage)
	if err != nil {
		return err
	}
	p.Voltage = v.String()

	if p.NonRemovable == nil {
		nr := def.NonRemovable
		p.NonRemovable = &nr
	}
	return nil
}

// Resolve returns the controller and configuration the profile describes.
func (p Profile) Resolve() (sdmmc.Controller, sdmmc.Config, error) {
	ctrl, err := ParseController(p.Controller)
	if err != nil {
		return 0, sdmmc.Config{}, err
	}
	cfg := sdmmc.DefaultConfig(ctrl)
	if p.Mode != "" {
		if cfg.Mode, err = ParseMode(p.Mode); err != nil {
			return 0, sdmmc.Config{}, err
		}
	}
	if p.BusWidth != 0 {
		if !slices.Contains(busWidths, p.BusWidth) {
			return 0, sdmmc.Config{}, fmt.Errorf("%w: %d", ErrBadBusWidth, p.BusWidth)
		}
		cfg.BusWidth = uint8(p.BusWidth)
	}
	if p.Voltage != "" {
		if cfg.Voltage, err = ParseVoltage(p.Voltage); err != nil {
			return 0, sdmmc.Config{}, err
		}
	}
	if p.NonRemovable != nil {
		cfg.NonRemovable = *p.NonRemovable
	}
	return ctrl, cfg, nil
}

// Find returns the profile called name.
func (ps Profiles) Find(name string) (Profile, error) {
	name = strings.ToLower(name)
	i := slices.IndexFunc(ps, func(p Profile) bool { return p.Name == name })
	if i < 0 {
		return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return ps[i], nil
}

// Names returns the profile names in sorted order.
func (ps Profiles) Names() []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	slices.Sort(names)
	return names
}

// Merge returns ps with every profile of extra added, replacing profiles
// of the same name.
func (ps Profiles) Merge(extra Profiles) Profiles {
	out := slices.Clone(ps)
	for _, p := range extra {
		if i := slices.IndexFunc(out, func(q Profile) bool { return q.Name == p.Name }); i >= 0 {
			out[i] = p
		} else {
			out = append(out, p)
		}
	}
	return out
}

// ParseController accepts "sdmmc1".."sdmmc4", a bare index 1..4, or the
// aliases "emmc" and "microsd".
func ParseController(s string) (sdmmc.Controller, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "emmc":
		return sdmmc.SDMMC4, nil
	case "microsd", "sd":
		return sdmmc.SDMMC1, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "sdmmc"))
	if err != nil || n < 1 || n > sdmmc.NumControllers {
		return 0, fmt.Errorf("%w %q", ErrUnknownController, s)
	}
	return sdmmc.Controller(n - 1), nil
}

// ParseMode accepts "standard" or "hs400".
func ParseMode(s string) (sdmmc.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "default", "legacy":
		return sdmmc.ModeStandard, nil
	case "hs400":
		return sdmmc.ModeHS400, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// ParseVoltage accepts "1.8V"/"3.3V" in any case, with or without the
// unit, and the "1v8"/"3v3" spelling.
func ParseVoltage(s string) (sdmmc.Voltage, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "v") {
	case "1.8", "1v8":
		return sdmmc.Voltage1V8, nil
	case "3.3", "3v3":
		return sdmmc.Voltage3V3, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownVoltage, s)
}
