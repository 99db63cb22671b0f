// Package config loads the camera/mount/focuser/filter daemon
// configuration, using koanf for the structured YAML daemon config
// (grounded on envsrv/cfg.go's ObjSetup/Config pattern) and yaml.v2 for the
// flat filter-slot table.
package config

import (
	"io/ioutil"

	"github.com/knadh/koanf"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/munkacsymj/astrosystem/internal/filterwheel"
)

// DeviceAddr is the typical address triplet for a remote device, named
// after the teacher's ObjSetup.
type DeviceAddr struct {
	Addr   string `koanf:"addr"`
	Serial bool   `koanf:"serial"`
	Baud   int    `koanf:"baud"`
}

// Optics describes the telescope/camera identity and sensor geometry
// fixed for a given installation, used to populate FITS header cards the
// camera itself can't report and to compute the default full-frame AOI.
type Optics struct {
	Telescope        string  `koanf:"telescope"`
	Camera           string  `koanf:"camera_name"`
	FocalLengthMM    float64 `koanf:"focal_length_mm"`
	ArcsecPerPixel   float64 `koanf:"arcsec_per_pixel"`
	SensorWidthPx    int     `koanf:"sensor_width_px"`
	OverscanPx       int     `koanf:"overscan_px"`
	OpticBlackEdgePx int     `koanf:"optic_black_edge_px"`
}

// Config is the camera/scope daemon's top-level configuration.
type Config struct {
	Camera    DeviceAddr `koanf:"camera"`
	Mount     DeviceAddr `koanf:"mount"`
	Focuser   DeviceAddr `koanf:"focuser"`
	Filter    DeviceAddr `koanf:"filterwheel"`
	Ambient   DeviceAddr `koanf:"ambient"`
	FlatPanel DeviceAddr `koanf:"flatpanel"`
	Optics    Optics     `koanf:"optics"`

	TCPPort  int    `koanf:"tcp_port"`
	HTTPPort int    `koanf:"http_port"`
	RunDir   string `koanf:"run_dir"`
	LogPath  string `koanf:"log_path"`

	FilterTablePath string `koanf:"filter_table"`
}

// Load reads a YAML daemon config file.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return Config{}, errors.Wrap(err, "config: load yaml")
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

// LoadFilterTable reads the flat "name: slot" filter table. This table is
// small and has no nested structure, so it is decoded directly with
// yaml.v2 rather than routed through koanf's provider/parser machinery.
func LoadFilterTable(path string) (filterwheel.Table, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read filter table")
	}
	var m map[string]int
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "config: parse filter table")
	}
	var table filterwheel.Table
	for name, slot := range m {
		table = append(table, filterwheel.Definition{Slot: slot, Name: name})
	}
	return table, nil
}
