package masterdata

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	customers map[string]Customer
	items     map[string]Item
	suppliers map[string]Supplier
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		customers: make(map[string]Customer),
		items:     make(map[string]Item),
		suppliers: make(map[string]Supplier),
		nextID:    1,
	}
}

func (m *mockRepository) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	var out []Customer
	for _, c := range m.customers {
		if search == "" || strings.HasPrefix(c.Code, strings.ToUpper(search)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if _, ok := m.customers[c.Code]; ok {
		return Customer{}, ErrAlreadyExists
	}
	c.ID = m.nextID
	m.nextID++
	c.IsActive = true
	m.customers[c.Code] = c
	return c, nil
}

func (m *mockRepository) GetCustomer(ctx context.Context, code string) (Customer, error) {
	c, ok := m.customers[code]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *mockRepository) ListItems(ctx context.Context, search string) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *mockRepository) CreateItem(ctx context.Context, it Item) (Item, error) {
	if _, ok := m.items[it.Code]; ok {
		return Item{}, ErrAlreadyExists
	}
	it.ID = m.nextID
	m.nextID++
	m.items[it.Code] = it
	return it, nil
}

func (m *mockRepository) ListSuppliers(ctx context.Context, search string) ([]Supplier, error) {
	var out []Supplier
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	if _, ok := m.suppliers[s.Code]; ok {
		return Supplier{}, ErrAlreadyExists
	}
	s.ID = m.nextID
	m.nextID++
	m.suppliers[s.Code] = s
	return s, nil
}

func TestCreateCustomerNormalisesCode(t *testing.T) {
	svc := NewService(newMockRepository())

	c, err := svc.CreateCustomer(context.Background(), Customer{Code: "  abc ", Name: " Abc Stores "})
	require.NoError(t, err)
	assert.Equal(t, "ABC", c.Code)
	assert.Equal(t, "Abc Stores", c.Name)
}

func TestCreateCustomerDuplicate(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, Customer{Code: "ABC", Name: "First"})
	require.NoError(t, err)

	// Same code in a different case still collides.
	_, err = svc.CreateCustomer(ctx, Customer{Code: "abc", Name: "Second"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetCustomerIsCaseFree(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, Customer{Code: "ABC", Name: "Abc Stores"})
	require.NoError(t, err)

	c, err := svc.GetCustomer(ctx, " abc ")
	require.NoError(t, err)
	assert.Equal(t, "Abc Stores", c.Name)

	_, err = svc.GetCustomer(ctx, "XYZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCustomersByPrefix(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	for _, code := range []string{"ABC", "ABD", "XYZ"} {
		_, err := svc.CreateCustomer(ctx, Customer{Code: code, Name: "Customer " + code})
		require.NoError(t, err)
	}

	matched, err := svc.ListCustomers(ctx, "ab")
	require.NoError(t, err)
	assert.Len(t, matched, 2)
}

func TestCreateItemNormalisesCode(t *testing.T) {
	svc := NewService(newMockRepository())

	it, err := svc.CreateItem(context.Background(), Item{Code: "tom", Name: "Tomato", PackDue: 5, PackCost: 2})
	require.NoError(t, err)
	assert.Equal(t, "TOM", it.Code)
	assert.InDelta(t, 5.0, it.PackDue, 1e-9)
}

func TestCreateSupplierNormalisesCode(t *testing.T) {
	svc := NewService(newMockRepository())

	s, err := svc.CreateSupplier(context.Background(), Supplier{Code: " s1", Name: "Supplier One"})
	require.NoError(t, err)
	assert.Equal(t, "S1", s.Code)
}
