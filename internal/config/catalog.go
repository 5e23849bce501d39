package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// gameEntry is the YAML shape of one catalog row. base_delay is a string
// because yaml.v3 has no native duration decoding.
type gameEntry struct {
	Name      string `yaml:"name" validate:"required"`
	AppToken  string `yaml:"app_token" validate:"required"`
	PromoID   string `yaml:"promo_id" validate:"required"`
	BaseDelay string `yaml:"base_delay"`
	Attempts  int    `yaml:"attempts" validate:"min=1"`
	Copies    int    `yaml:"copies" validate:"min=1"`
}

// catalogFile is the YAML shape of the game catalog file.
type catalogFile struct {
	Games []gameEntry `yaml:"games" validate:"required,min=1,dive"`
}

// LoadCatalog reads and validates the game catalog from a YAML file.
func LoadCatalog(path string) ([]domain.GameSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadCatalog: %w", err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("op=config.LoadCatalog: %w", err)
	}
	v := validator.New()
	if err := v.Struct(cf); err != nil {
		return nil, fmt.Errorf("op=config.LoadCatalog: %w", err)
	}
	seen := map[string]bool{}
	out := make([]domain.GameSpec, 0, len(cf.Games))
	for _, e := range cf.Games {
		if seen[e.Name] {
			return nil, fmt.Errorf("op=config.LoadCatalog: %w: duplicate game %q", domain.ErrInvalidArgument, e.Name)
		}
		seen[e.Name] = true
		var delay time.Duration
		if e.BaseDelay != "" {
			delay, err = time.ParseDuration(e.BaseDelay)
			if err != nil {
				return nil, fmt.Errorf("op=config.LoadCatalog: game %q base_delay: %w", e.Name, err)
			}
		}
		out = append(out, domain.GameSpec{
			Name:      e.Name,
			AppToken:  e.AppToken,
			PromoID:   e.PromoID,
			BaseDelay: delay,
			Attempts:  e.Attempts,
			Copies:    e.Copies,
		})
	}
	return out, nil
}

// LoadProxies reads the proxy list file, one proxy per line, blank lines
// and #-comments skipped. Entries are host:port or user:pass@host:port;
// a scheme is prepended when missing.
func LoadProxies(path string) ([]domain.ProxySpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadProxies: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []domain.ProxySpec
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		out = append(out, domain.ProxySpec{URL: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("op=config.LoadProxies: %w", err)
	}
	return out, nil
}
