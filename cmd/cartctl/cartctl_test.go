package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nits22/smart-grocery-cart/config"
	"github.com/nits22/smart-grocery-cart/internal/domain"
)

const milkBreadBasket = `
items: [milk, bread, caviar]
stores:
  - {name: A, delivery_fee: 30}
  - {name: B, delivery_fee: 30}
observations:
  - {item: milk, store: A, price: 40}
  - {item: milk, store: B, price: 35}
  - {item: bread, store: A, price: 20}
  - {item: bread, store: B, price: 25}
  - {item: caviar, store: A}
`

func testConfig() *config.Config {
	return &config.Config{
		Stores:    []config.StoreEntry{{Name: "Blinkit", DeliveryFee: 30}, {Name: "Zepto", DeliveryFee: 25}},
		Optimizer: config.OptimizerConfig{DefaultStrategy: "greedy", MaxExactStores: 20, MaxItems: 50},
		Store:     config.StoreConfig{Path: "none"},
	}
}

func TestParseBasket(t *testing.T) {
	req, err := parseBasket([]byte(milkBreadBasket))
	require.NoError(t, err)

	assert.Equal(t, []string{"milk", "bread", "caviar"}, req.Items)
	require.Len(t, req.Stores, 2)
	assert.Equal(t, domain.Store{Name: "A", DeliveryFee: 3000}, req.Stores[0])
	require.Len(t, req.Observations, 5)
	assert.Equal(t, domain.Money(4000), req.Observations[0].Price)
	assert.True(t, req.Observations[0].Available)

	caviar := req.Observations[4]
	assert.False(t, caviar.Available)
	assert.Equal(t, domain.PriceUnavailable, caviar.Price)
}

func TestParseBasket_Errors(t *testing.T) {
	_, err := parseBasket([]byte("items: [milk"))
	assert.Error(t, err)

	_, err = parseBasket([]byte("items: [milk]\nobservations:\n  - {item: milk, store: A, price: -1}\n"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = loadBasket(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOptimizeCmd_Metadata(t *testing.T) {
	assert.Equal(t, "optimize", optimizeCmd.Use)
	assert.NotEmpty(t, optimizeCmd.Short)
	require.NotNil(t, optimizeCmd.Flags().Lookup("file"))
	require.NotNil(t, optimizeCmd.Flags().Lookup("strategy"))
	require.NotNil(t, optimizeCmd.Flags().Lookup("compare"))
}

func runOptimize(t *testing.T, basket, strategy, output string, compare bool) (string, error) {
	t.Helper()
	cfg = testConfig()

	path := filepath.Join(t.TempDir(), "basket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(basket), 0o644))

	optimizeFile, optimizeStrategy, optimizeOutput, optimizeCompare = path, strategy, output, compare
	t.Cleanup(func() {
		optimizeFile, optimizeStrategy, optimizeOutput, optimizeCompare = "", "", "text", false
	})

	var out bytes.Buffer
	optimizeCmd.SetOut(&out)
	optimizeCmd.SetContext(context.Background())
	err := optimizeCmd.RunE(optimizeCmd, nil)
	return out.String(), err
}

func TestOptimizeCmd_Text(t *testing.T) {
	out, err := runOptimize(t, milkBreadBasket, "exact", "text", true)
	require.NoError(t, err)

	assert.Contains(t, out, "exact total: ₹90.00 (optimal)")
	assert.Contains(t, out, "caviar")
	assert.Contains(t, out, "savings: ₹0.00")
	assert.Contains(t, out, "Found 2/3 items")
}

func TestOptimizeCmd_JSON(t *testing.T) {
	out, err := runOptimize(t, milkBreadBasket, "greedy", "json", false)
	require.NoError(t, err)

	var result struct {
		Plan domain.AllocationPlan `json:"plan"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.Money(9000), result.Plan.GrandTotal)
	assert.Equal(t, []string{"B"}, result.Plan.StoresUsed())
}

func TestOptimizeCmd_DefaultsToConfiguredStores(t *testing.T) {
	basket := "items: [milk]\nobservations:\n  - {item: milk, store: Zepto, price: 50}\n"
	out, err := runOptimize(t, basket, "", "json", false)
	require.NoError(t, err)

	var result struct {
		Plan domain.AllocationPlan `json:"plan"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.Money(7500), result.Plan.GrandTotal)
}

func TestOptimizeCmd_BadOutput(t *testing.T) {
	_, err := runOptimize(t, milkBreadBasket, "", "xml", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output must be text or json")
}

func TestRunsCmd_Disabled(t *testing.T) {
	cfg = testConfig()

	err := runsCmd.RunE(runsCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run history is disabled")
}

func TestStoresCmd(t *testing.T) {
	cfg = testConfig()

	var out bytes.Buffer
	storesCmd.SetOut(&out)
	require.NoError(t, storesCmd.RunE(storesCmd, nil))

	assert.Contains(t, out.String(), "Blinkit")
	assert.Contains(t, out.String(), "25.00")
}
