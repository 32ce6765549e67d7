package bdd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/chirino/chat-history/internal/config"
	"github.com/chirino/chat-history/internal/plugin/blob/sqlstore"
	"github.com/chirino/chat-history/internal/testutil/cucumber"
	"github.com/chirino/chat-history/internal/testutil/testmongo"
	"github.com/chirino/chat-history/internal/testutil/testpg"
	"github.com/chirino/chat-history/internal/testutil/testredis"
	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"
)

func TestFeaturesFS(t *testing.T) {
	root := t.TempDir()
	runFeatures(t, func(_ context.Context, _ string) (config.SourceConfig, config.SourceConfig, error) {
		dir, err := os.MkdirTemp(root, "scenario-")
		if err != nil {
			return config.SourceConfig{}, config.SourceConfig{}, err
		}
		return config.SourceConfig{Kind: "fs", Dir: filepath.Join(dir, "bundled")},
			config.SourceConfig{Kind: "fs", Dir: filepath.Join(dir, "local")},
			nil
	})
}

func TestFeaturesSQLite(t *testing.T) {
	root := t.TempDir()
	runFeatures(t, func(_ context.Context, _ string) (config.SourceConfig, config.SourceConfig, error) {
		dir, err := os.MkdirTemp(root, "scenario-")
		if err != nil {
			return config.SourceConfig{}, config.SourceConfig{}, err
		}
		dsn := "file:" + filepath.Join(dir, "chat.db") + "?_busy_timeout=5000"
		src := config.SourceConfig{Kind: sqlstore.KindSQLite, DBURL: dsn}
		return src, src, nil
	})
}

func TestFeaturesPostgres(t *testing.T) {
	dsn := testpg.StartPostgres(t)
	var n atomic.Int64
	runFeatures(t, func(ctx context.Context, _ string) (config.SourceConfig, config.SourceConfig, error) {
		scenarioDSN, err := testpg.CreateDatabase(ctx, dsn, fmt.Sprintf("scenario_%d", n.Add(1)))
		if err != nil {
			return config.SourceConfig{}, config.SourceConfig{}, err
		}
		src := config.SourceConfig{Kind: sqlstore.KindPostgres, DBURL: scenarioDSN}
		return src, src, nil
	})
}

// TestFeaturesMongo keeps the bundled source on the filesystem and the local
// source in MongoDB, with redis caching reads of both.
func TestFeaturesMongo(t *testing.T) {
	uri := testmongo.StartMongo(t)
	redisURL := testredis.StartRedis(t)
	root := t.TempDir()
	var n atomic.Int64
	runFeatures(t, func(ctx context.Context, _ string) (config.SourceConfig, config.SourceConfig, error) {
		if err := testredis.FlushAll(ctx, redisURL); err != nil {
			return config.SourceConfig{}, config.SourceConfig{}, err
		}
		dir, err := os.MkdirTemp(root, "scenario-")
		if err != nil {
			return config.SourceConfig{}, config.SourceConfig{}, err
		}
		return config.SourceConfig{Kind: "fs", Dir: dir},
			config.SourceConfig{Kind: "mongo", DBURL: uri, Database: fmt.Sprintf("scenario_%d", n.Add(1))},
			nil
	}, func(cfg *config.Config) {
		cfg.CacheType = "redis"
		cfg.RedisURL = redisURL
	})
}

func runFeatures(t *testing.T, backend Backend, tweaks ...func(*config.Config)) {
	t.Helper()

	featureFiles, err := filepath.Glob(filepath.Join("features", "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, featureFiles, "no feature files found")

	opts := cucumber.DefaultOptions()
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" {
			opts.Format = "pretty"
		}
	}

	for _, featurePath := range featureFiles {
		name := strings.TrimSuffix(filepath.Base(featurePath), ".feature")
		t.Run(name, func(t *testing.T) {
			o := opts
			o.TestingT = t
			o.Paths = []string{featurePath}
			defer cucumber.ApplyReportOptions(&o, t.Name())()

			suite := cucumber.NewTestSuite()
			suite.TestingT = t
			suite.Extra[BackendKey] = backend
			suite.Extra[ConfigTweaksKey] = tweaks

			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: suite.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
