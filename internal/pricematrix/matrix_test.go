package pricematrix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

var testStores = []domain.Store{
	{Name: "Blinkit", DeliveryFee: 2000},
	{Name: "Swiggy Instamart", DeliveryFee: 2500},
}

func obs(item, store string, price domain.Money, available bool) domain.Observation {
	return domain.Observation{Item: domain.Item(item), Store: store, Price: price, Available: available, DisplayName: item + "@" + store}
}

func TestBuild_CompleteMatrix(t *testing.T) {
	m, err := Build(
		[]domain.Observation{obs("milk", "Blinkit", 4500, true)},
		[]domain.Item{"milk", "bread"},
		testStores,
	)
	require.NoError(t, err)

	for _, item := range m.Items() {
		for _, s := range m.Stores() {
			_, ok := m.Cell(item, s.Name)
			assert.True(t, ok, "missing cell %s@%s", item, s.Name)
		}
	}

	c, _ := m.Cell("milk", "Blinkit")
	assert.Equal(t, Cell{Price: 4500, Available: true, DisplayName: "milk@Blinkit"}, c)

	c, _ = m.Cell("bread", "Swiggy Instamart")
	assert.False(t, c.Available)
	assert.Equal(t, domain.PriceUnavailable, c.Price)
}

func TestBuild_SortsRowsAndColumns(t *testing.T) {
	m, err := Build(nil, []domain.Item{"rice", "atta", "milk"}, []domain.Store{{Name: "Zepto"}, {Name: "BigBasket"}})
	require.NoError(t, err)

	assert.Equal(t, []domain.Item{"atta", "milk", "rice"}, m.Items())
	assert.Equal(t, "BigBasket", m.Stores()[0].Name)
	assert.Equal(t, "Zepto", m.Stores()[1].Name)
}

func TestBuild_NormalizesItems(t *testing.T) {
	m, err := Build(
		[]domain.Observation{obs("  MILK ", "Blinkit", 4500, true)},
		[]domain.Item{"Milk", "milk"},
		testStores,
	)
	require.NoError(t, err)

	assert.Equal(t, []domain.Item{"milk"}, m.Items())
	c, _ := m.Cell("milk", "Blinkit")
	assert.True(t, c.Available)
}

func TestBuild_DuplicateObservations(t *testing.T) {
	t.Run("lowest available price wins", func(t *testing.T) {
		m, err := Build([]domain.Observation{
			obs("milk", "Blinkit", 5000, true),
			obs("milk", "Blinkit", 4500, true),
			obs("milk", "Blinkit", 4800, true),
		}, []domain.Item{"milk"}, testStores)
		require.NoError(t, err)

		c, _ := m.Cell("milk", "Blinkit")
		assert.Equal(t, domain.Money(4500), c.Price)
	})

	t.Run("unavailable never overrides available", func(t *testing.T) {
		m, err := Build([]domain.Observation{
			obs("milk", "Blinkit", 5000, true),
			obs("milk", "Blinkit", 100, false),
		}, []domain.Item{"milk"}, testStores)
		require.NoError(t, err)

		c, _ := m.Cell("milk", "Blinkit")
		assert.True(t, c.Available)
		assert.Equal(t, domain.Money(5000), c.Price)
	})

	t.Run("available overrides earlier unavailable", func(t *testing.T) {
		m, err := Build([]domain.Observation{
			obs("milk", "Blinkit", 0, false),
			obs("milk", "Blinkit", 5200, true),
		}, []domain.Item{"milk"}, testStores)
		require.NoError(t, err)

		c, _ := m.Cell("milk", "Blinkit")
		assert.True(t, c.Available)
		assert.Equal(t, domain.Money(5200), c.Price)
	})

	t.Run("result is independent of observation order", func(t *testing.T) {
		a := []domain.Observation{obs("milk", "Blinkit", 5000, true), obs("milk", "Blinkit", 4000, true)}
		b := []domain.Observation{a[1], a[0]}

		m1, err := Build(a, []domain.Item{"milk"}, testStores)
		require.NoError(t, err)
		m2, err := Build(b, []domain.Item{"milk"}, testStores)
		require.NoError(t, err)

		assert.Equal(t, m1.Rows(), m2.Rows())
	})
}

func TestBuild_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		obs    []domain.Observation
		items  []domain.Item
		stores []domain.Store
	}{
		{"empty items", nil, nil, testStores},
		{"blank item", nil, []domain.Item{"  "}, testStores},
		{"empty stores", nil, []domain.Item{"milk"}, nil},
		{"unknown item", []domain.Observation{obs("caviar", "Blinkit", 100, true)}, []domain.Item{"milk"}, testStores},
		{"unknown store", []domain.Observation{obs("milk", "Zepto", 100, true)}, []domain.Item{"milk"}, testStores},
		{"negative price", []domain.Observation{obs("milk", "Blinkit", -1, true)}, []domain.Item{"milk"}, testStores},
		{"price above maximum", []domain.Observation{obs("milk", "Blinkit", domain.MaxAmount+1, true)}, []domain.Item{"milk"}, testStores},
		{"negative fee", nil, []domain.Item{"milk"}, []domain.Store{{Name: "A", DeliveryFee: -5}}},
		{"fee above maximum", nil, []domain.Item{"milk"}, []domain.Store{{Name: "A", DeliveryFee: domain.MaxAmount + 1}}},
		{"conflicting fees", nil, []domain.Item{"milk"}, []domain.Store{{Name: "A", DeliveryFee: 5}, {Name: "A", DeliveryFee: 6}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Build(tt.obs, tt.items, tt.stores)
			assert.Nil(t, m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation), "error %v should be a validation error", err)
		})
	}
}

func TestBuild_AcceptsMaximumAmount(t *testing.T) {
	m, err := Build([]domain.Observation{obs("milk", "Blinkit", domain.MaxAmount, true)}, []domain.Item{"milk"}, testStores)
	require.NoError(t, err)

	c, ok := m.Cell("milk", "Blinkit")
	require.True(t, ok)
	assert.Equal(t, domain.MaxAmount, c.Price)
}

func TestMatrix_AvailableStores(t *testing.T) {
	m, err := Build([]domain.Observation{
		obs("milk", "Swiggy Instamart", 5000, true),
		obs("milk", "Blinkit", 4500, true),
		obs("bread", "Blinkit", 2500, false),
	}, []domain.Item{"milk", "bread"}, testStores)
	require.NoError(t, err)

	assert.Equal(t, []string{"Blinkit", "Swiggy Instamart"}, m.AvailableStores("milk"))
	assert.Empty(t, m.AvailableStores("bread"))

	s, ok := m.Store("Blinkit")
	assert.True(t, ok)
	assert.Equal(t, domain.Money(2000), s.DeliveryFee)

	_, ok = m.Store("Zepto")
	assert.False(t, ok)
}

func TestMatrix_RowsIsACopy(t *testing.T) {
	m, err := Build([]domain.Observation{obs("milk", "Blinkit", 4500, true)}, []domain.Item{"milk"}, testStores)
	require.NoError(t, err)

	rows := m.Rows()
	rows["milk"]["Blinkit"] = Cell{}

	c, _ := m.Cell("milk", "Blinkit")
	assert.True(t, c.Available)
}
