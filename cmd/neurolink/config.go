package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"neurolink/internal/session"
	"neurolink/internal/submit"
	"neurolink/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func loadConfig(cCtx *cli.Context) (*types.Config, error) {
	c := new(types.Config)
	if err := envconfig.Process(cCtx.String("env-prefix"), c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if c.BackendURL == "" {
		return nil, fmt.Errorf("set BACKEND_URL")
	}

	if c.ServerPort == 0 {
		c.ServerPort = 8081
	}

	if c.ReadTimeoutSec == 0 {
		c.ReadTimeoutSec = 10
	}

	if c.WriteTimeoutSec == 0 {
		c.WriteTimeoutSec = 60
	}

	if c.UploadTimeoutSec == 0 {
		c.UploadTimeoutSec = 900
	}

	return c, nil
}

func newLogger(c *types.Config, json bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func submitPolicy(c *types.Config) submit.Policy {
	return submit.Policy{
		Timeout:     time.Duration(c.SubmitTimeoutSec) * time.Second,
		MaxAttempts: int(c.SubmitMaxAttempts),
		RetryDelay:  time.Duration(c.SubmitRetryDelayMs) * time.Millisecond,
	}
}

// sessionFile is where the command line keeps the logged in identity.
func sessionFile(c *types.Config) (*session.File, error) {
	path := c.SessionFile
	if path == "" {
		p, err := session.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	return session.NewFile(path), nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	config, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	return config, nil
}
