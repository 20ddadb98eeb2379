package main

import (
	"net"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"minutes/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) apiOverride() string {
	if c.apiFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.apiFlag)
}

// client resolves the daemon base URL and returns an API client for it.
// The --api flag wins; otherwise the configured bind address is used, with
// wildcard hosts rewritten to loopback since the CLI always dials locally.
func (c *commandContext) client() (*apiClient, error) {
	if override := c.apiOverride(); override != "" {
		if !strings.Contains(override, "://") {
			override = "http://" + override
		}
		return newAPIClient(override), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClient(baseURLFromBind(cfg.Paths.APIBind)), nil
}

func baseURLFromBind(bind string) string {
	bind = strings.TrimSpace(bind)
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
