package main

import (
	"context"
	"fmt"
	"time"

	"neurolink/internal/location"

	"github.com/urfave/cli/v2"
)

var locationsCommand = &cli.Command{
	Name:  "locations",
	Usage: "List governorates, or the cities of one governorate",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "Governorate id whose cities to list",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger := newLogger(cfg, false)
		ctx := context.Background()

		opts := []location.Option{location.WithFallback(cfg.LocationFallback)}

		if store, err := sessionFile(cfg); err == nil {
			opts = append(opts, location.WithSession(store))
		}

		if cfg.RedisURL != "" {
			cache, err := location.NewRedisCache(cfg.RedisURL, time.Duration(cfg.LocationCacheTTLSec)*time.Second)
			if err != nil {
				return err
			}
			defer cache.Close()
			opts = append(opts, location.WithCache(cache))
		}

		resolver := location.NewResolver(cfg.BackendURL, logger, opts...)

		if region := c.String("region"); region != "" {
			for _, city := range resolver.FetchCities(ctx, region) {
				fmt.Printf("%d\t%s\n", city.ID, city.Name)
			}
			return nil
		}

		for _, region := range resolver.FetchRegions(ctx) {
			fmt.Printf("%d\t%s\n", region.ID, region.Name)
		}
		return nil
	},
}
