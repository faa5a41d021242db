package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/yaziris/discured/internal/domain"
)

// Load reads the configuration once at startup. The file is written by
// an external setup flow; this process never mutates it.
func Load(path string) (domain.Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return domain.Config{}, errors.Wrap(err, "failed to open config")
	}
	defer file.Close()

	var config domain.Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return domain.Config{}, errors.Wrap(err, "failed to decode config")
	}

	config.Curation.Account = strings.ToLower(strings.Trim(config.Curation.Account, " @"))
	config.Curation.TokenSymbol = strings.ToUpper(config.Curation.TokenSymbol)
	config.Curation.RequiredTag = strings.ToLower(strings.Trim(config.Curation.RequiredTag, " #"))

	applyDefaults(&config)
	return config, nil
}

func applyDefaults(c *domain.Config) {
	if c.Curation.BalanceKind == "" {
		c.Curation.BalanceKind = domain.BalanceStaked
	}
	if c.Curation.WindowHours == 0 {
		c.Curation.WindowHours = 24
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.NodeURL == "" {
		c.Server.NodeURL = "https://api.hive.blog"
	}
	if c.Server.SidechainURL == "" {
		c.Server.SidechainURL = "https://api.hive-engine.com/rpc/contracts"
	}
	if c.Server.StorePath == "" {
		c.Server.StorePath = "links.json"
	}

	t := &c.Tuning
	if t.LookbackWindow == 0 {
		t.LookbackWindow = domain.Duration(10 * time.Minute)
	}
	if t.ReconcileInterval == 0 {
		t.ReconcileInterval = domain.Duration(24 * time.Hour)
	}
	if t.RoleThrottle == 0 {
		t.RoleThrottle = domain.Duration(2 * time.Second)
	}
	if t.HolderPageSize == 0 {
		t.HolderPageSize = 1000
	}
	if t.HolderMaxPages == 0 {
		t.HolderMaxPages = 10
	}
	if t.SessionTimeout == 0 {
		t.SessionTimeout = domain.Duration(666 * time.Second)
	}
}
