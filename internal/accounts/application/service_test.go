package application

import (
	"context"
	"errors"
	"testing"
	"time"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/accounts/infrastructure/memory"
)

type failingListRepo struct {
	*memory.AccountRepository
	fail bool
}

func (r *failingListRepo) List(ctx context.Context) ([]accounts.Account, error) {
	if r.fail {
		return nil, errors.New("dial tcp: connection refused")
	}
	return r.AccountRepository.List(ctx)
}

func newTestService(t *testing.T, repo accounts.Repository) *Service {
	t.Helper()
	state := NewState()
	propagator, err := NewCutoffPropagator(repo, memory.NewLedgerRepository(), state)
	if err != nil {
		t.Fatalf("new propagator: %v", err)
	}
	clock := fixedClock{now: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	service, err := NewService(repo, state, propagator,
		WithClock(clock),
		WithAccountIDGenerator(func() string { return "new-id" }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestCreateMergesIntoOldestAccount(t *testing.T) {
	repo := newFlakyRepo(seedAccounts()...)
	service := newTestService(t, repo)

	result, err := service.Create(context.Background(), accounts.NewAccount{
		Email: "x@y.com",
		Alias: "Torre A",
		Devices: []accounts.NewDevice{
			{DecoderID: "D1", CutoffDate: "2026-01-01"},
			{DecoderID: "D9", CutoffDate: "2025-09-01", RoomNumber: "909"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !result.Merged || result.Account.ID != "a1" {
		t.Fatalf("expected merge into a1, got %+v", result)
	}
	if result.Account.Alias != "Torre A" {
		t.Fatalf("expected alias overwritten, got %s", result.Account.Alias)
	}
	if len(result.Account.Devices) != 3 {
		t.Fatalf("expected 3 devices after dedupe, got %d", len(result.Account.Devices))
	}
	if result.Account.Devices[0].CutoffDate != "2025-06-01" {
		t.Fatalf("expected existing D1 kept, got %s", result.Account.Devices[0].CutoffDate)
	}
	if repo.inserts != 0 {
		t.Fatalf("expected no insert, got %d", repo.inserts)
	}
}

func TestCreateInsertsNewEmail(t *testing.T) {
	repo := newFlakyRepo(seedAccounts()...)
	service := newTestService(t, repo)

	result, err := service.Create(context.Background(), accounts.NewAccount{
		Email:   "new@y.com",
		Devices: []accounts.NewDevice{{DecoderID: "D7", CutoffDate: "2025-09-01"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Merged || result.Account.ID != "new-id" {
		t.Fatalf("expected new account, got %+v", result)
	}
	list, _ := service.List(context.Background())
	if len(list) != 4 {
		t.Fatalf("expected 4 accounts, got %d", len(list))
	}
}

func TestCreateValidation(t *testing.T) {
	service := newTestService(t, newFlakyRepo())
	_, err := service.Create(context.Background(), accounts.NewAccount{Email: "x@y.com"})
	if !errors.Is(err, accounts.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateDevicePropagatesCutoff(t *testing.T) {
	repo := newFlakyRepo(seedAccounts()...)
	service := newTestService(t, repo)

	room := "105"
	cutoff := "2025-07-15"
	account, propagation, err := service.UpdateDevice(context.Background(), "a2", 0, accounts.DeviceUpdate{
		RoomNumber: &room,
		CutoffDate: &cutoff,
	})
	if err != nil {
		t.Fatalf("update device: %v", err)
	}
	if propagation == nil || len(propagation.Succeeded) != 2 {
		t.Fatalf("expected propagation over 2 accounts, got %+v", propagation)
	}
	if account.Devices[0].RoomNumber != "105" || account.Devices[0].CutoffDate != "2025-07-15" {
		t.Fatalf("unexpected device %+v", account.Devices[0])
	}
	sibling, _ := service.Get(context.Background(), "a1")
	if !sibling.HasCutoff("2025-07-15") {
		t.Fatalf("expected sibling updated, got %+v", sibling.Devices)
	}
}

// secondWriteFails lets the first update of an account through and fails the rest.
type secondWriteFails struct {
	*flakyRepo
	target string
	seen   int
}

func (r *secondWriteFails) Update(ctx context.Context, account accounts.Account) error {
	if account.ID == r.target {
		r.seen++
		if r.seen > 1 {
			return errors.New("write timeout")
		}
	}
	return r.flakyRepo.Update(ctx, account)
}

func TestUpdateDeviceFailedPropagationKeepsEditedFields(t *testing.T) {
	repo := &secondWriteFails{flakyRepo: newFlakyRepo(seedAccounts()...), target: "a2"}
	service := newTestService(t, repo)

	room := "105"
	cutoff := "2025-07-15"
	account, propagation, err := service.UpdateDevice(context.Background(), "a2", 0, accounts.DeviceUpdate{
		RoomNumber: &room,
		CutoffDate: &cutoff,
	})
	if !errors.Is(err, accounts.ErrPartialPropagation) {
		t.Fatalf("expected ErrPartialPropagation, got %v", err)
	}
	if propagation == nil || len(propagation.Failed) != 1 || propagation.Failed[0].AccountID != "a2" {
		t.Fatalf("expected a2 failed, got %+v", propagation)
	}
	if account.Devices[0].RoomNumber != "105" || account.Devices[0].CutoffDate != "2025-05-20" {
		t.Fatalf("expected edited room with previous cutoff, got %+v", account.Devices[0])
	}
	stored, _ := repo.AccountRepository.Get(context.Background(), "a2")
	if stored == nil || stored.Devices[0].RoomNumber != "105" || stored.Devices[0].CutoffDate != "2025-05-20" {
		t.Fatalf("expected stored row to match snapshot, got %+v", stored)
	}
}

func TestUpdateDeviceWithoutCutoffChange(t *testing.T) {
	repo := newFlakyRepo(seedAccounts()...)
	service := newTestService(t, repo)

	card := "C99"
	same := "2025-06-01"
	account, propagation, err := service.UpdateDevice(context.Background(), "a1", 0, accounts.DeviceUpdate{
		AccessCardNumber: &card,
		CutoffDate:       &same,
	})
	if err != nil {
		t.Fatalf("update device: %v", err)
	}
	if propagation != nil {
		t.Fatalf("expected no propagation, got %+v", propagation)
	}
	if account.Devices[0].AccessCardNumber != "C99" {
		t.Fatalf("expected card updated, got %+v", account.Devices[0])
	}
	if _, _, err := service.UpdateDevice(context.Background(), "a1", 9, accounts.DeviceUpdate{}); !errors.Is(err, accounts.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDeleteDeviceKeepsEmptyAccount(t *testing.T) {
	repo := newFlakyRepo(seedAccounts()...)
	service := newTestService(t, repo)

	account, err := service.DeleteDevice(context.Background(), "a3", 0)
	if err != nil {
		t.Fatalf("delete device: %v", err)
	}
	if len(account.Devices) != 0 {
		t.Fatalf("expected empty devices, got %+v", account.Devices)
	}
	if _, err := service.Get(context.Background(), "a3"); err != nil {
		t.Fatalf("expected account to survive, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	repo := newFlakyRepo(seedAccounts()...)
	service := newTestService(t, repo)

	if err := service.DeleteAccount(context.Background(), "a3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.Get(context.Background(), "a3"); !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := service.DeleteAccount(context.Background(), "a3"); !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound on second delete, got %v", err)
	}
}

func TestFindByAccessCardAndEmails(t *testing.T) {
	service := newTestService(t, newFlakyRepo(seedAccounts()...))

	match, err := service.FindByAccessCard(context.Background(), "C2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if match.AccountID != "a1" || match.DeviceIndex != 1 || match.Alias != "Piso 1" {
		t.Fatalf("unexpected match %+v", match)
	}
	if _, err := service.FindByAccessCard(context.Background(), "nope"); !errors.Is(err, accounts.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}

	emails, err := service.Emails(context.Background())
	if err != nil {
		t.Fatalf("emails: %v", err)
	}
	if len(emails) != 2 || emails[0] != "other@y.com" || emails[1] != "x@y.com" {
		t.Fatalf("unexpected emails %v", emails)
	}
	filtered, _ := service.FilterByEmail(context.Background(), "x@y.com")
	if len(filtered) != 2 {
		t.Fatalf("expected 2 accounts for email, got %d", len(filtered))
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	repo := &failingListRepo{AccountRepository: memory.NewAccountRepository(seedAccounts()...)}
	service := newTestService(t, repo)

	if _, err := service.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	repo.fail = true
	if _, err := service.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	list, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected previous snapshot of 3, got %d", len(list))
	}
}
