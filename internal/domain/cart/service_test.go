package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/catalog"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/pricing"
)

// --- Mock implementations ---

// memRepo is an in-memory cart.Repository. Like the real Postgres
// implementation it recomputes the aggregate totals on every item mutation
// and enforces one active cart per customer.
type memRepo struct {
	mu        sync.Mutex
	carts     map[string]*Cart
	items     map[string]*LineItem
	insertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		carts: make(map[string]*Cart),
		items: make(map[string]*LineItem),
	}
}

func (m *memRepo) ByID(_ context.Context, id string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) ActiveByCustomer(_ context.Context, customerID string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.CustomerID == customerID && c.Status == StatusActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNoActiveCart
}

func (m *memRepo) CreateActive(_ context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.carts {
		if existing.CustomerID == c.CustomerID && existing.Status == StatusActive {
			return ErrActiveCartExists
		}
	}
	cp := *c
	cp.CreatedAt = time.Now()
	m.carts[c.ID] = &cp
	return nil
}

func (m *memRepo) Items(_ context.Context, cartID string) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LineItem
	for _, li := range m.items {
		if li.CartID == cartID {
			out = append(out, *li)
		}
	}
	return out, nil
}

func (m *memRepo) ItemByID(_ context.Context, id string) (*LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	li, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *li
	return &cp, nil
}

func (m *memRepo) InsertItem(_ context.Context, li *LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	cp := *li
	m.items[li.ID] = &cp
	m.refreshTotals(li.CartID)
	return nil
}

func (m *memRepo) UpdateItem(_ context.Context, li *LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[li.ID]; !ok {
		return ErrItemNotFound
	}
	cp := *li
	m.items[li.ID] = &cp
	m.refreshTotals(li.CartID)
	return nil
}

func (m *memRepo) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	li, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	m.refreshTotals(li.CartID)
	return nil
}

func (m *memRepo) SetCheckoutSession(_ context.Context, cartID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return ErrCartNotFound
	}
	c.CheckoutSessionID = sessionID
	return nil
}

func (m *memRepo) Finalize(_ context.Context, cartID string, total decimal.Decimal, receiptURL string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return false, ErrCartNotFound
	}
	if c.Status != StatusActive {
		return false, nil
	}
	c.Status = StatusFinalized
	c.TotalPrice = total
	c.ReceiptURL = receiptURL
	c.ValidatedAt = &at
	return true, nil
}

// refreshTotals mirrors the transactional SUM the Postgres repository runs.
// Caller must hold m.mu.
func (m *memRepo) refreshTotals(cartID string) {
	c, ok := m.carts[cartID]
	if !ok {
		return
	}
	price, deposit := decimal.Zero, decimal.Zero
	for _, li := range m.items {
		if li.CartID == cartID {
			price = price.Add(li.Price)
			deposit = deposit.Add(li.Deposit)
		}
	}
	c.TotalPrice = price
	c.TotalDeposit = deposit
}

type mockCatalog struct {
	configurations map[string]*catalog.Configuration
	accessories    map[string]*catalog.Accessory
	customers      map[string]*catalog.Customer
}

func (m *mockCatalog) ConfigurationByID(_ context.Context, id string) (*catalog.Configuration, error) {
	cfg, ok := m.configurations[id]
	if !ok {
		return nil, catalog.ErrConfigurationNotFound
	}
	return cfg, nil
}

func (m *mockCatalog) AccessoryByID(_ context.Context, id string) (*catalog.Accessory, error) {
	acc, ok := m.accessories[id]
	if !ok {
		return nil, catalog.ErrAccessoryNotFound
	}
	return acc, nil
}

func (m *mockCatalog) CustomerByID(_ context.Context, id string) (*catalog.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, catalog.ErrCustomerNotFound
	}
	return c, nil
}

// --- Helpers ---

func newTestConfiguration(id string, condition catalog.Condition) *catalog.Configuration {
	return &catalog.Configuration{
		ID: id,
		Vehicle: catalog.Vehicle{
			ID:        "v-" + id,
			Name:      "Roadster S",
			BasePrice: decimal.NewFromInt(100_000),
			Condition: condition,
		},
		Options: []catalog.Option{
			{ID: "o-ext", Kind: catalog.OptionExteriorColor, Name: "Racing Yellow", Price: decimal.NewFromInt(2_000)},
			{ID: "o-int", Kind: catalog.OptionInteriorColor, Name: "Leather Black", Price: decimal.NewFromInt(1_000)},
			{ID: "o-whl", Kind: catalog.OptionWheel, Name: "20 inch", Price: decimal.NewFromInt(500)},
		},
	}
}

func newTestService(repo *memRepo, cat *mockCatalog) *Service {
	return NewService(repo, cat, pricing.NewEngine(decimal.NewFromInt(20)))
}

var alice = Actor{CustomerID: "alice"}

// --- Tests ---

func TestActiveCart_CreatesEmptyCart(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &mockCatalog{})

	c, err := svc.ActiveCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)
	assert.True(t, c.TotalPrice.IsZero())
	assert.True(t, c.TotalDeposit.IsZero())

	again, err := svc.ActiveCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
}

func TestActiveCart_ConcurrentFirstPurchase(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &mockCatalog{})

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func(i int) {
			defer wg.Done()
			c, err := svc.ActiveCart(context.Background(), "alice")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	active := 0
	for _, c := range repo.carts {
		if c.Status == StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestAddConfiguration(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{configurations: map[string]*catalog.Configuration{
		"cfg-1": newTestConfiguration("cfg-1", catalog.ConditionNew),
	}}
	svc := newTestService(repo, cat)

	li, err := svc.AddConfiguration(context.Background(), alice, "cfg-1")
	require.NoError(t, err)

	assert.Equal(t, ItemVehicle, li.Kind)
	assert.Equal(t, 1, li.Quantity)
	assert.True(t, decimal.NewFromInt(103_500).Equal(li.Price))
	assert.True(t, decimal.NewFromInt(20_700).Equal(li.Deposit))
	assert.True(t, li.Deposit.LessThanOrEqual(li.Price))

	c, err := svc.ActiveCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(103_500).Equal(c.TotalPrice))
	assert.True(t, decimal.NewFromInt(20_700).Equal(c.TotalDeposit))
}

func TestAddConfiguration_SameConfigurationStaysAtOne(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{configurations: map[string]*catalog.Configuration{
		"cfg-1": newTestConfiguration("cfg-1", catalog.ConditionNew),
	}}
	svc := newTestService(repo, cat)

	first, err := svc.AddConfiguration(context.Background(), alice, "cfg-1")
	require.NoError(t, err)
	second, err := svc.AddConfiguration(context.Background(), alice, "cfg-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Quantity)
	assert.Len(t, repo.items, 1)
}

func TestAddConfiguration_UsedVehicleRejected(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{configurations: map[string]*catalog.Configuration{
		"cfg-used": newTestConfiguration("cfg-used", catalog.ConditionUsed),
	}}
	svc := newTestService(repo, cat)

	_, err := svc.AddConfiguration(context.Background(), alice, "cfg-used")
	require.ErrorIs(t, err, ErrUsedVehicle)
	assert.Empty(t, repo.items)
}

func TestAddConfiguration_UnknownConfiguration(t *testing.T) {
	svc := newTestService(newMemRepo(), &mockCatalog{})

	_, err := svc.AddConfiguration(context.Background(), alice, "missing")
	require.ErrorIs(t, err, catalog.ErrConfigurationNotFound)
}

func TestAddAccessory_MergesQuantity(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{accessories: map[string]*catalog.Accessory{
		"acc-1": {ID: "acc-1", SKU: "CAP-01", Name: "Cap", Price: decimal.NewFromInt(50)},
	}}
	svc := newTestService(repo, cat)

	_, err := svc.AddAccessory(context.Background(), alice, "acc-1", 2)
	require.NoError(t, err)
	li, err := svc.AddAccessory(context.Background(), alice, "acc-1", 3)
	require.NoError(t, err)

	assert.Equal(t, 5, li.Quantity)
	assert.True(t, decimal.NewFromInt(250).Equal(li.Price))
	assert.True(t, li.Deposit.IsZero())
	assert.Len(t, repo.items, 1)

	c, err := svc.ActiveCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(c.TotalPrice))
	assert.True(t, c.TotalDeposit.IsZero())
}

func TestAddAccessory_InvalidQuantity(t *testing.T) {
	svc := newTestService(newMemRepo(), &mockCatalog{})

	_, err := svc.AddAccessory(context.Background(), alice, "acc-1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateQuantity_AccessoryRepricesProportionally(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{accessories: map[string]*catalog.Accessory{
		"acc-1": {ID: "acc-1", SKU: "CAP-01", Name: "Cap", Price: decimal.RequireFromString("49.90")},
	}}
	svc := newTestService(repo, cat)

	li, err := svc.AddAccessory(context.Background(), alice, "acc-1", 1)
	require.NoError(t, err)

	updated, err := svc.UpdateQuantity(context.Background(), alice, li.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.True(t, decimal.RequireFromString("199.60").Equal(updated.Price))
}

func TestUpdateQuantity_VehicleCappedAtOne(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{configurations: map[string]*catalog.Configuration{
		"cfg-1": newTestConfiguration("cfg-1", catalog.ConditionNew),
	}}
	svc := newTestService(repo, cat)

	li, err := svc.AddConfiguration(context.Background(), alice, "cfg-1")
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(context.Background(), alice, li.ID, 2)
	require.ErrorIs(t, err, ErrVehicleQuantity)

	kept, err := repo.ItemByID(context.Background(), li.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Quantity)
}

func TestUpdateQuantity_FinalizedOrderRejected(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{accessories: map[string]*catalog.Accessory{
		"acc-1": {ID: "acc-1", Name: "Cap", Price: decimal.NewFromInt(50)},
	}}
	svc := newTestService(repo, cat)

	li, err := svc.AddAccessory(context.Background(), alice, "acc-1", 1)
	require.NoError(t, err)

	won, err := repo.Finalize(context.Background(), li.CartID, decimal.NewFromInt(50), "", time.Now())
	require.NoError(t, err)
	require.True(t, won)

	_, err = svc.UpdateQuantity(context.Background(), alice, li.ID, 3)
	require.ErrorIs(t, err, ErrCartFinalized)

	err = svc.RemoveItem(context.Background(), alice, li.ID)
	require.ErrorIs(t, err, ErrCartFinalized)

	kept, err := repo.ItemByID(context.Background(), li.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Quantity)
}

func TestRemoveItem_UpdatesTotals(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{
		configurations: map[string]*catalog.Configuration{
			"cfg-1": newTestConfiguration("cfg-1", catalog.ConditionNew),
		},
		accessories: map[string]*catalog.Accessory{
			"acc-1": {ID: "acc-1", Name: "Cap", Price: decimal.NewFromInt(50)},
		},
	}
	svc := newTestService(repo, cat)

	vehicle, err := svc.AddConfiguration(context.Background(), alice, "cfg-1")
	require.NoError(t, err)
	_, err = svc.AddAccessory(context.Background(), alice, "acc-1", 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(context.Background(), alice, vehicle.ID))

	c, err := svc.ActiveCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(c.TotalPrice))
	assert.True(t, c.TotalDeposit.IsZero())
}

func TestRemoveItem_NotOwner(t *testing.T) {
	repo := newMemRepo()
	cat := &mockCatalog{accessories: map[string]*catalog.Accessory{
		"acc-1": {ID: "acc-1", Name: "Cap", Price: decimal.NewFromInt(50)},
	}}
	svc := newTestService(repo, cat)

	li, err := svc.AddAccessory(context.Background(), alice, "acc-1", 1)
	require.NoError(t, err)

	err = svc.RemoveItem(context.Background(), Actor{CustomerID: "mallory"}, li.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	// Admins may act on carts they do not own.
	err = svc.RemoveItem(context.Background(), Actor{CustomerID: "support", Admin: true}, li.ID)
	require.NoError(t, err)
}

func TestAddAccessory_InsertError(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = errors.New("db write failed")
	cat := &mockCatalog{accessories: map[string]*catalog.Accessory{
		"acc-1": {ID: "acc-1", Name: "Cap", Price: decimal.NewFromInt(50)},
	}}
	svc := newTestService(repo, cat)

	_, err := svc.AddAccessory(context.Background(), alice, "acc-1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert line item")
}
