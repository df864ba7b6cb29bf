package app

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/suxatcode/fsgraph/layout"
)

// Tuning is the optional on-disk knob file for the force simulation. Only
// keys present in the file override the built-in defaults.
type Tuning struct {
	GravityStrength         float64 `yaml:"gravity"`
	RepulsionMultiplier     float64 `yaml:"repulsion"`
	SpringStiffness         float64 `yaml:"springStiffness"`
	RestLengthFactor        float64 `yaml:"restLengthFactor"`
	VelocityDecay           float64 `yaml:"velocityDecay"`
	MaxVelocity             float64 `yaml:"maxVelocity"`
	Theta                   float64 `yaml:"theta"`
	AlphaDecay              float64 `yaml:"alphaDecay"`
	JitterRadius            float64 `yaml:"jitterRadius"`
	KineticEnergyThreshold  float64 `yaml:"kineticEnergyThreshold"`
	ConvergenceSteps        int     `yaml:"convergenceSteps"`
	Parallelization         int     `yaml:"parallelization"`
	Seed                    int64   `yaml:"seed"`
	MinDistanceBetweenNodes float64 `yaml:"minDistance"`
}

// LoadTuning reads path into a layout.Config, leaving absent keys at zero so
// the simulation fills them with its defaults. An empty path is not an error.
func LoadTuning(path string) (layout.Config, error) {
	conf := layout.Config{}
	if path == "" {
		return conf, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return conf, errors.Wrapf(err, "reading tuning file %q", path)
	}
	t := Tuning{}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return conf, errors.Wrapf(err, "parsing tuning file %q", path)
	}
	conf.GravityStrength = t.GravityStrength
	conf.RepulsionMultiplier = t.RepulsionMultiplier
	conf.SpringStiffness = t.SpringStiffness
	conf.RestLengthFactor = t.RestLengthFactor
	conf.VelocityDecay = t.VelocityDecay
	conf.MaxVelocity = t.MaxVelocity
	conf.Theta = t.Theta
	conf.AlphaDecay = t.AlphaDecay
	conf.JitterRadius = t.JitterRadius
	conf.KineticEnergyThreshold = t.KineticEnergyThreshold
	conf.ConvergenceSteps = t.ConvergenceSteps
	conf.Parallelization = t.Parallelization
	conf.Seed = t.Seed
	conf.MinDistanceBetweenNodes = t.MinDistanceBetweenNodes
	return conf, nil
}
