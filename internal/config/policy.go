package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jornadahq/jornada/internal/timer"
	"gopkg.in/yaml.v3"
)

type yamlPolicy struct {
	WorkdayHours          float64 `yaml:"workday_hours"`
	LunchAfterHours       float64 `yaml:"lunch_after_hours"`
	EndWarningLeadMinutes int     `yaml:"end_warning_lead_minutes"`
	EditWindowHours       int     `yaml:"edit_window_hours"`
	TickIntervalSeconds   int     `yaml:"tick_interval_seconds"`
}

// LoadPolicy reads the workday policy from YAML. When path is empty or the
// file does not exist, the default policy is returned.
func LoadPolicy(path string) (timer.Policy, error) {
	policy := timer.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy, nil
		}
		return policy, fmt.Errorf("read policy file: %w", err)
	}

	var fileData yamlPolicy
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return policy, fmt.Errorf("parse policy yaml: %w", err)
	}

	applyYamlPolicy(&policy, fileData)
	return policy, nil
}

func applyYamlPolicy(policy *timer.Policy, fileData yamlPolicy) {
	if fileData.WorkdayHours > 0 {
		policy.WorkdayCap = time.Duration(fileData.WorkdayHours * float64(time.Hour))
	}
	if fileData.LunchAfterHours > 0 {
		policy.LunchAfter = time.Duration(fileData.LunchAfterHours * float64(time.Hour))
	}
	if fileData.EndWarningLeadMinutes > 0 {
		policy.EndWarningAt = policy.WorkdayCap - time.Duration(fileData.EndWarningLeadMinutes)*time.Minute
	} else {
		policy.EndWarningAt = policy.WorkdayCap - 5*time.Minute
	}
	if fileData.EditWindowHours > 0 {
		policy.EditWindow = time.Duration(fileData.EditWindowHours) * time.Hour
	}
	if fileData.TickIntervalSeconds > 0 {
		policy.TickInterval = time.Duration(fileData.TickIntervalSeconds) * time.Second
	}
}
