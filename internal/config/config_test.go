package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridstat/internal/adapters/repository"
	"github.com/okian/gridstat/internal/config"
	"github.com/okian/gridstat/internal/domain/model"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, repository.DriverMemory)
			convey.So(cfg.StatsTTL, convey.ShouldEqual, 60*time.Minute)
			convey.So(cfg.RulesTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.RankingsTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.Policy(), convey.ShouldEqual, model.TotalIndependent)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then origins split on commas", func() {
			cfg.CORSAllowOrigins = "https://a.example, https://b.example,,"
			convey.So(cfg.Origins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})

		convey.Convey("Then store settings follow the fields", func() {
			cfg.StoreDriver = repository.DriverRedis
			cfg.RedisDB = 3
			s := cfg.StoreSettings()
			convey.So(s.Driver, convey.ShouldEqual, repository.DriverRedis)
			convey.So(s.RedisAddr, convey.ShouldEqual, "localhost:6379")
			convey.So(s.RedisDB, convey.ShouldEqual, 3)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid field combinations", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"empty backend", func(c *config.Config) { c.BackendURL = " " }},
			{"zero stats ttl", func(c *config.Config) { c.StatsTTL = 0 }},
			{"bad policy", func(c *config.Config) { c.TotalWeekPolicy = "sometimes" }},
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "sqlite" }},
			{"postgres no url", func(c *config.Config) { c.StoreDriver = repository.DriverPostgres }},
			{"redis no addr", func(c *config.Config) { c.StoreDriver = repository.DriverRedis; c.RedisAddr = "" }},
			{"zero queue", func(c *config.Config) { c.WarmQueueSize = 0 }},
			{"limit no window", func(c *config.Config) { c.RateLimitWindow = 0 }},
			{"negative limit", func(c *config.Config) { c.RateLimitRequests = -1 }},
			{"zero idle timeout", func(c *config.Config) { c.SessionIdleTimeout = 0 }},
		}

		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New(context.Background())
				tc.mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
