package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediaferry/internal/api"
	"mediaferry/internal/catalog"
	"mediaferry/internal/config"
)

type commandContext struct {
	configFlag *string
	adminFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, adminFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		adminFlag:  adminFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) adminBind() string {
	if c.adminFlag != nil {
		if bind := strings.TrimSpace(*c.adminFlag); bind != "" {
			return bind
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Server.AdminBind
}

func (c *commandContext) adminToken() string {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Server.APIToken
}

// withClient runs fn against the daemon's admin API and rewrites transport
// failures into operator hints.
func (c *commandContext) withClient(fn func(*api.AdminClient) error) error {
	bind := c.adminBind()
	if bind == "" {
		return errors.New("admin API address not configured; set server.admin_bind or pass --admin")
	}
	client, err := api.NewAdminClient(bind, c.adminToken())
	if err != nil {
		return fmt.Errorf("admin API address %q: %w", bind, err)
	}
	return wrapAPIError(fn(client), bind)
}

// withCatalog opens the catalog directly. The daemon holds the catalog open
// while it runs, so these commands are meant for setup and maintenance.
func (c *commandContext) withCatalog(cmd *cobra.Command, fn func(context.Context, *catalog.Catalog) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.Open(cfg.CatalogDir())
	if err != nil {
		return fmt.Errorf("open catalog %s: %w (stop the daemon before running catalog commands)", cfg.CatalogDir(), err)
	}
	defer cat.Close()
	return fn(cmd.Context(), cat)
}

func wrapAPIError(err error, bind string) error {
	switch {
	case err == nil:
		return nil
	case api.IsAPIUnavailable(err):
		return fmt.Errorf("connect to daemon: admin API at %s is not reachable; start it with `mediaferryd`", bind)
	case api.IsStatus(err, http.StatusUnauthorized):
		return fmt.Errorf("admin API rejected the token; check server.api_token: %w", err)
	default:
		return err
	}
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
