package main_test

import (
	"encoding/json"
	"net/http"
	"testing"

	mainapp "catalog"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig builds a configuration backed by an in-memory SQLite
// database, with cache and broker left at their in-process defaults.
func testConfig(name string) *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8081")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:"+name+"?mode=memory&cache=shared")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RESTOCK_THRESHOLD", 5)
	v.SetDefault("SEED_DEMO_DATA", true)
	v.AutomaticEnv()
	return v
}

func TestNewApp_HealthCheck(t *testing.T) {
	app, err := mainapp.NewApp(testConfig(t.Name()))
	require.NoError(t, err, "failed to create app")

	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)

	resp, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestNewApp_SeedsDemoData(t *testing.T) {
	app, err := mainapp.NewApp(testConfig(t.Name()))
	require.NoError(t, err, "failed to create app")

	req, err := http.NewRequest(http.MethodGet, "/api/products", nil)
	require.NoError(t, err)

	resp, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.Len(t, products, 3, "demo seed creates three products")
}

func TestNewApp_RejectsUnknownDriver(t *testing.T) {
	v := testConfig(t.Name())
	v.Set("DATABASE_DRIVER", "oracle")

	app, err := mainapp.NewApp(v)
	assert.Error(t, err)
	assert.Nil(t, app)
}
