package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the keys required by the given command mode are
// present. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "analyze":
		errs = append(errs, c.requireStore()...)
		errs = append(errs, c.requireReasoning()...)
		errs = append(errs, c.requireSearch()...)
	case "normalize":
		if c.Pipeline.WorkDir == "" {
			errs = append(errs, "pipeline.work_dir is required")
		}
	case "discover":
		errs = append(errs, c.requireStore()...)
		if c.Tenderland.Key == "" {
			errs = append(errs, "tenderland.key is required")
		}
		if c.Tenderland.AutosearchID <= 0 {
			errs = append(errs, "tenderland.autosearch_id must be > 0")
		}
		if c.Discovery.Analyze {
			errs = append(errs, c.requireReasoning()...)
			errs = append(errs, c.requireSearch()...)
		}
	case "report":
		errs = append(errs, c.requireStore()...)
	case "serve":
		errs = append(errs, c.requireStore()...)
		errs = append(errs, c.requireReasoning()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Search.SiteConcurrency < 0 || c.Search.SiteConcurrency > 64 {
		errs = append(errs, "search.site_concurrency must be between 0 and 64")
	}
	if c.Pipeline.ConvertConcurrency < 0 {
		errs = append(errs, "pipeline.convert_concurrency must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) requireStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	return errs
}

func (c *Config) requireReasoning() []string {
	if c.Anthropic.Key == "" {
		return []string{"anthropic.key is required"}
	}
	return nil
}

func (c *Config) requireSearch() []string {
	var errs []string
	if len(c.Search.Backends) == 0 {
		return []string{"search.backends must name at least one backend"}
	}
	for _, b := range c.Search.Backends {
		switch b {
		case "google":
			if c.Google.Key == "" || c.Google.CX == "" {
				errs = append(errs, "google.key and google.cx are required")
			}
		case "yandex":
			if c.Yandex.Key == "" || c.Yandex.FolderID == "" {
				errs = append(errs, "yandex.key and yandex.folder_id are required")
			}
		case "jina":
			if c.Jina.Key == "" {
				errs = append(errs, "jina.key is required")
			}
		default:
			errs = append(errs, "unknown search backend "+b)
		}
	}
	return errs
}
