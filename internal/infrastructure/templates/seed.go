package templates

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type seedFile struct {
	Templates []domain.Template `yaml:"templates"`
}

// Seed loads a YAML template file into the store, grouped by application.
// Used to bootstrap offline deployments that never reach the authority.
func (l *Library) Seed(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template seed: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse template seed: %w", err)
	}

	byApp := make(map[string][]domain.Template)
	for i, tpl := range file.Templates {
		if tpl.ID == "" || tpl.AppID == "" {
			return fmt.Errorf("template seed entry %d: template_id and app_id are required", i)
		}
		if err := tpl.Signature.Validate(); err != nil {
			return fmt.Errorf("template seed entry %d (%s): %w", i, tpl.ID, err)
		}
		byApp[tpl.AppID] = append(byApp[tpl.AppID], tpl)
	}

	for appID, tpls := range byApp {
		if err := l.store.ReplaceForApp(ctx, appID, tpls); err != nil {
			return fmt.Errorf("seed templates for %s: %w", appID, err)
		}
	}
	l.logger.Info("template seed loaded", "path", path, "apps", len(byApp), "templates", len(file.Templates))
	return nil
}
