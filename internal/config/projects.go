package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/jornadahq/jornada/internal/domain"
	"gopkg.in/yaml.v3"
)

type yamlTask struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type yamlProject struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Tasks []yamlTask `yaml:"tasks"`
}

// LoadProjects reads the project/task directory seed from YAML. An empty
// path or missing file yields no projects.
func LoadProjects(path string) ([]*domain.Project, error) {
	if path == "" {
		return nil, nil
	}

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects file: %w", err)
	}

	var fileData []yamlProject
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return nil, fmt.Errorf("parse projects yaml: %w", err)
	}

	projects := make([]*domain.Project, 0, len(fileData))
	for _, p := range fileData {
		if p.ID == "" {
			return nil, fmt.Errorf("project %q missing id", p.Name)
		}
		project := &domain.Project{ID: p.ID, Name: p.Name}
		for _, t := range p.Tasks {
			if t.ID == "" {
				return nil, fmt.Errorf("task %q in project %q missing id", t.Name, p.ID)
			}
			project.Tasks = append(project.Tasks, domain.Task{ID: t.ID, Name: t.Name})
		}
		projects = append(projects, project)
	}
	return projects, nil
}
