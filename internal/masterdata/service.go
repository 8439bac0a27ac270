package masterdata

import (
	"context"
	"strings"
)

// Store is the persistence surface the service needs.
type Store interface {
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	GetCustomer(ctx context.Context, code string) (Customer, error)
	ListItems(ctx context.Context, search string) ([]Item, error)
	CreateItem(ctx context.Context, it Item) (Item, error)
	ListSuppliers(ctx context.Context, search string) ([]Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, search)
}

func (s *Service) GetCustomer(ctx context.Context, code string) (Customer, error) {
	return s.repo.GetCustomer(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// CreateCustomer normalises the code before insert; codes are always stored
// upper case so workstation prefix matching stays case free.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.Name = strings.TrimSpace(c.Name)
	return s.repo.CreateCustomer(ctx, c)
}

func (s *Service) ListItems(ctx context.Context, search string) ([]Item, error) {
	return s.repo.ListItems(ctx, search)
}

func (s *Service) CreateItem(ctx context.Context, it Item) (Item, error) {
	it.Code = strings.ToUpper(strings.TrimSpace(it.Code))
	it.Name = strings.TrimSpace(it.Name)
	return s.repo.CreateItem(ctx, it)
}

func (s *Service) ListSuppliers(ctx context.Context, search string) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, search)
}

func (s *Service) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	sup.Code = strings.ToUpper(strings.TrimSpace(sup.Code))
	sup.Name = strings.TrimSpace(sup.Name)
	return s.repo.CreateSupplier(ctx, sup)
}
