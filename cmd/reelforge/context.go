package main

import (
	"errors"
	"strings"
	"sync"

	"reelforge/internal/api"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
)

type commandContext struct {
	configFlag *string
	ownerFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, ownerFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		ownerFlag:  ownerFlag,
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

func (c *commandContext) owner() (string, error) {
	if c.ownerFlag != nil {
		if owner := strings.TrimSpace(*c.ownerFlag); owner != "" {
			return owner, nil
		}
	}
	return "", errors.New("owner identity required (use --owner)")
}

// withService opens the queue store directly and hands the caller the API
// gateway over it. The store is shared with any running daemon through
// SQLite's own locking.
func (c *commandContext) withService(fn func(*api.Service, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(api.NewService(store, logging.NewNop()), store)
}
