// Package config holds the deployment mode shared by every other config section.
package config

import (
	"fmt"
	"os"
	"strings"
)

// DeploymentMode selects how the pipeline's infrastructure is provisioned.
type DeploymentMode string

const (
	// ModeStandalone runs all roles in one process over the in-memory bus and cache.
	ModeStandalone DeploymentMode = "standalone"
	// ModeDistributed expects NATS JetStream and a shared cache reachable by every replica.
	ModeDistributed DeploymentMode = "distributed"
)

func (m DeploymentMode) IsStandalone() bool  { return m == ModeStandalone }
func (m DeploymentMode) IsDistributed() bool { return m == ModeDistributed }

type DeploymentConfig struct {
	Mode DeploymentMode `yaml:"mode"`
}

func DefaultDeploymentConfig() DeploymentConfig {
	return DeploymentConfig{Mode: ModeStandalone}
}

func (c *DeploymentConfig) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
}

// ApplyEnvOverrides reads TRIPSYNC_DEPLOYMENT_MODE, case-insensitively.
func (c *DeploymentConfig) ApplyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("TRIPSYNC_DEPLOYMENT_MODE")); v != "" {
		c.Mode = DeploymentMode(strings.ToLower(v))
	}
}

func (c *DeploymentConfig) ResolvePaths(_, _ string) {}

func (c *DeploymentConfig) Validate(_ DeploymentMode) error {
	switch c.Mode {
	case ModeStandalone, ModeDistributed:
		return nil
	}
	return fmt.Errorf("deployment.mode: unsupported value %q (want %q or %q)", c.Mode, ModeStandalone, ModeDistributed)
}
