package testutil

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/Monsterkot/diplom/internal/config"
)

// ResetConfig resets the global viper instance now and again when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetTestConfig resets viper, registers defaults and points the store at a
// database inside env. It returns the resolved configuration.
func SetTestConfig(t *testing.T, env *TestEnv, overrides map[string]any) config.Config {
	t.Helper()

	ResetConfig(t)
	config.SetDefaults(viper.GetViper())
	viper.Set("store.path", env.Path("diplom.db"))
	viper.Set("sources.google_books_api_key", "test-google-key")
	for key, value := range overrides {
		viper.Set(key, value)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	return cfg
}
