// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"io"
	"os"

	"github.com/sqreen/go-aspect/internal/config"
	"github.com/sqreen/go-aspect/internal/plog"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

// NewRegistryFromEnv returns a new registry configured by the environment
// variables prefixed by `SQREEN_ASPECT_` or the `sqreen-aspect` configuration
// file:
//
// - `log_level`: `disabled`, `error` (default), `info` or `debug`. Logs are
//   written to the standard error.
// - `instead_policy`: `reject` (default), `last` or `first`.
// - `disable`: registry hooks are disabled when not empty.
func NewRegistryFromEnv() (*Registry, error) {
	cfg, err := config.NewFromEnv(os.Stderr)
	if err != nil {
		return nil, sqerrors.Wrap(err, "configuration")
	}
	return newRegistryFromConfig(cfg, os.Stderr)
}

func newRegistryFromConfig(cfg *config.Config, out io.Writer) (*Registry, error) {
	policy, err := ParseInsteadPolicy(cfg.InsteadPolicy())
	if err != nil {
		return nil, err
	}
	logger := plog.WithBackoff(plog.NewLogger(cfg.LogLevel(), out, nil))
	r := NewRegistry(WithLogger(logger), WithInsteadPolicy(policy))
	if cfg.Disabled() {
		logger.Info("aspect: hooks disabled by configuration")
		r.SetEnabled(false)
	}
	return r, nil
}
