package bdd

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/chat-history/internal/cmd/serve"
	"github.com/chirino/chat-history/internal/config"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	registrymigrate "github.com/chirino/chat-history/internal/registry/migrate"
	"github.com/chirino/chat-history/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

const (
	// BackendKey is the TestSuite.Extra key holding the runner's Backend.
	BackendKey = "backend"
	// ConfigTweaksKey holds []func(*config.Config) applied to every scenario.
	ConfigTweaksKey = "configTweaks"
)

// Backend returns fresh, empty bundled and local sources for one scenario.
type Backend func(ctx context.Context, scenario string) (bundled, local config.SourceConfig, err error)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		h := &historySteps{s: s}
		ctx.Before(h.before)
		ctx.After(h.after)

		ctx.Step(`^the active user is "([^"]*)"$`, h.theActiveUserIs)
		ctx.Step(`^the bundled store has "([^"]*)" with json:$`, h.theBundledStoreHasJSON)
		ctx.Step(`^the local store has "([^"]*)" with json:$`, h.theLocalStoreHasJSON)
		ctx.Step(`^the chat history service is running$`, h.theServiceIsRunning)
		ctx.Step(`^the chat history service is running with (\d+) messages per page$`, h.theServiceIsRunningWithPageSize)
		ctx.Step(`^the local store "([^"]*)" should contain json:$`, h.theLocalStoreShouldContainJSON)
		ctx.Step(`^the local store should not have "([^"]*)"$`, h.theLocalStoreShouldNotHave)
		ctx.Step(`^the bundled store "([^"]*)" should contain json:$`, h.theBundledStoreShouldContainJSON)
	})
}

// historySteps owns the stores and server of one scenario.
type historySteps struct {
	s   *cucumber.TestScenario
	cfg config.Config
	srv *serve.Server
}

func (h *historySteps) before(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	v, ok := h.s.SuiteExtra(BackendKey)
	if !ok {
		return ctx, fmt.Errorf("no %q configured on the test suite", BackendKey)
	}
	backend, ok := v.(Backend)
	if !ok {
		return ctx, fmt.Errorf("%q has type %T", BackendKey, v)
	}

	h.cfg = config.DefaultConfig()
	bundled, local, err := backend(ctx, sc.Name)
	if err != nil {
		return ctx, fmt.Errorf("prepare backend: %w", err)
	}
	h.cfg.Bundled = bundled
	h.cfg.Local = local
	h.cfg.Listener.Port = 0
	h.cfg.Listener.EnableTLS = false
	h.cfg.DrainTimeout = 5 * time.Second
	if v, ok := h.s.SuiteExtra(ConfigTweaksKey); ok {
		tweaks, _ := v.([]func(*config.Config))
		for _, tweak := range tweaks {
			tweak(&h.cfg)
		}
	}

	// Fixtures are written before the server starts, so SQL tables must exist now.
	if err := registrymigrate.RunAll(config.WithContext(ctx, &h.cfg)); err != nil {
		return ctx, fmt.Errorf("migrate: %w", err)
	}
	return ctx, nil
}

func (h *historySteps) after(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
	if h.srv == nil {
		return ctx, err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.DrainTimeout)
	defer cancel()
	if shutdownErr := h.srv.Shutdown(shutdownCtx); shutdownErr != nil {
		h.s.Logf("shutdown: %v", shutdownErr)
	}
	h.srv = nil
	return ctx, err
}

func (h *historySteps) theActiveUserIs(user string) error {
	if h.srv != nil {
		return fmt.Errorf("the active user must be set before the service starts")
	}
	h.cfg.UserID = user
	return nil
}

// withStore opens the raw store for role, bypassing the read-only and cache
// wrappers the service applies.
func (h *historySteps) withStore(role string, fn func(context.Context, registryblob.BlobStore) error) error {
	src := h.cfg.Source(role)
	loader, err := registryblob.Select(src.Kind)
	if err != nil {
		return err
	}
	ctx := config.WithRole(config.WithContext(context.Background(), &h.cfg), role)
	store, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", role, err)
	}
	defer func() { _ = registryblob.Close(store) }()
	return fn(ctx, store)
}

func (h *historySteps) put(role, key string, doc *godog.DocString) error {
	return h.withStore(role, func(ctx context.Context, store registryblob.BlobStore) error {
		return store.Write(ctx, key, []byte(doc.Content))
	})
}

func (h *historySteps) theBundledStoreHasJSON(key string, doc *godog.DocString) error {
	return h.put(config.RoleBundled, key, doc)
}

func (h *historySteps) theLocalStoreHasJSON(key string, doc *godog.DocString) error {
	return h.put(config.RoleLocal, key, doc)
}

func (h *historySteps) theServiceIsRunning() error {
	if h.srv != nil {
		return fmt.Errorf("the chat history service is already running")
	}
	srv, err := serve.StartServer(context.Background(), &h.cfg)
	if err != nil {
		return err
	}
	h.srv = srv
	h.s.APIURL = fmt.Sprintf("http://127.0.0.1:%d", srv.Port)
	return nil
}

func (h *historySteps) theServiceIsRunningWithPageSize(perPage int) error {
	h.cfg.MaxMessagesPerPage = perPage
	return h.theServiceIsRunning()
}

func (h *historySteps) storeShouldContain(role, key string, expected *godog.DocString) error {
	return h.withStore(role, func(ctx context.Context, store registryblob.BlobStore) error {
		data, err := store.Read(ctx, key)
		if err != nil {
			return err
		}
		return h.s.JSONMustMatch(string(data), expected.Content)
	})
}

func (h *historySteps) theLocalStoreShouldContainJSON(key string, expected *godog.DocString) error {
	return h.storeShouldContain(config.RoleLocal, key, expected)
}

func (h *historySteps) theBundledStoreShouldContainJSON(key string, expected *godog.DocString) error {
	return h.storeShouldContain(config.RoleBundled, key, expected)
}

func (h *historySteps) theLocalStoreShouldNotHave(key string) error {
	return h.withStore(config.RoleLocal, func(ctx context.Context, store registryblob.BlobStore) error {
		ok, err := store.Exists(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("local store unexpectedly has %s", key)
		}
		return nil
	})
}
