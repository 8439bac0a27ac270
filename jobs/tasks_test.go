package jobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvds/salesdesk/internal/billing"
	"github.com/nvds/salesdesk/internal/masterdata"
)

type stubLoanStore struct {
	loans map[string]float64
}

func (s *stubLoanStore) Snapshot(ctx context.Context) (*billing.Snapshot, error) {
	return &billing.Snapshot{}, nil
}

func (s *stubLoanStore) CreateLine(ctx context.Context, payload billing.LinePayload) (*billing.SaleLine, error) {
	return nil, billing.ErrNotFound
}

func (s *stubLoanStore) UpdateLine(ctx context.Context, id int64, payload billing.LinePayload) (*billing.SaleLine, error) {
	return nil, billing.ErrNotFound
}

func (s *stubLoanStore) DeleteLine(ctx context.Context, id int64) error { return billing.ErrNotFound }

func (s *stubLoanStore) SetGivenAmount(ctx context.Context, id int64, amount float64) (*billing.SaleLine, error) {
	return nil, billing.ErrNotFound
}

func (s *stubLoanStore) MarkPrinted(ctx context.Context, ids []int64, forceNewBill bool) (string, error) {
	return "", billing.ErrNotFound
}

func (s *stubLoanStore) MarkAllHeld(ctx context.Context, ids []int64) error { return nil }

func (s *stubLoanStore) LoanBalance(ctx context.Context, customerCode string) (float64, error) {
	return s.loans[customerCode], nil
}

type stubCustomerLister struct {
	codes []string
}

func (l *stubCustomerLister) ListCustomers(ctx context.Context, search string) ([]masterdata.Customer, error) {
	var out []masterdata.Customer
	for _, code := range l.codes {
		out = append(out, masterdata.Customer{Code: code, Name: "Customer " + code})
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoanWarmupHandlerWarmsAllCustomers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &stubLoanStore{loans: map[string]float64{"ABC": 100, "XYZ": 250}}
	lister := &stubCustomerLister{codes: []string{"ABC", "XYZ"}}
	handler := NewLoanWarmupHandler(store, lister, client, time.Minute, nil, testLogger())

	task, err := NewLoanWarmupTask(LoanWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	for code, want := range store.loans {
		raw, err := mr.Get("billing:loan:" + code)
		require.NoError(t, err)
		got, err := strconv.ParseFloat(raw, 64)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestLoanWarmupHandlerScopedToPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &stubLoanStore{loans: map[string]float64{"ABC": 100, "XYZ": 250}}
	handler := NewLoanWarmupHandler(store, &stubCustomerLister{}, client, time.Minute, nil, testLogger())

	task, err := NewLoanWarmupTask(LoanWarmupPayload{CustomerCodes: []string{"ABC"}})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	_, err = mr.Get("billing:loan:ABC")
	require.NoError(t, err)
	assert.False(t, mr.Exists("billing:loan:XYZ"))
}

func TestSpoolCleanupHandlerRemovesAgedFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.pdf")
	tmp := filepath.Join(dir, "orphan.pdf.tmp")
	fresh := filepath.Join(dir, "fresh.pdf")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, tmp, fresh, other} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))
	require.NoError(t, os.Chtimes(tmp, stale, stale))
	require.NoError(t, os.Chtimes(other, stale, stale))

	handler := NewSpoolCleanupHandler(dir, 24*time.Hour, nil, testLogger())
	task, err := NewSpoolCleanupTask()
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	// Unrelated files are never touched.
	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestSpoolCleanupHandlerMissingDirIsNoOp(t *testing.T) {
	handler := NewSpoolCleanupHandler(filepath.Join(t.TempDir(), "missing"), time.Hour, nil, testLogger())
	task, err := NewSpoolCleanupTask()
	require.NoError(t, err)
	assert.NoError(t, handler(context.Background(), task))
}
