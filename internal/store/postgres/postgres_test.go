package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"ledgercore/internal/domain/account"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/service/doubleentry"
	"ledgercore/internal/service/transferops"
	"ledgercore/internal/service/txn"
	"ledgercore/internal/store/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPool starts a PostgreSQL testcontainer seeded with the init
// schema and returns a connected pool, cleaned up automatically.
// Grounded on the teacher's SetupPostgresContainerWithEnv in
// test/integration/testenv/postgres_container.go.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledgercore"),
		tcpostgres.WithUsername("ledgercore"),
		tcpostgres.WithPassword("ledgercore_test"),
		tcpostgres.WithInitScripts("migrations/000001_init_schema.up.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))
	return pool
}

func usd(t *testing.T, amount int64) money.Money {
	m, err := money.New(amount, "USD")
	require.NoError(t, err)
	return m
}

func seedAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, store *postgres.AccountStore, owner string, balance int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	a, err := account.Open(id, owner, usd(t, balance), time.Now().UTC())
	require.NoError(t, err)
	a.ReleaseEvents()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	require.NoError(t, store.Create(ctx, tx, a))
	require.NoError(t, tx.Commit(ctx))
	return id
}

func TestAccountStoreRoundTrip(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	store := postgres.NewAccountStore(pool)

	id := seedAccount(t, ctx, pool, store, "Ada Lovelace", 10000)

	loaded, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", loaded.Owner)
	require.Equal(t, int64(10000), loaded.Balance.MinorUnits())
}

func TestDoubleEntryExecuteAgainstRealLocks(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	accountStore := postgres.NewAccountStore(pool)

	source := seedAccount(t, ctx, pool, accountStore, "Source", 10000)
	destination := seedAccount(t, ctx, pool, accountStore, "Destination", 0)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	result, err := doubleentry.Execute(ctx, tx, accountStore, source, destination, 2500, "USD", uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(7500), result.SourceBalanceAfter)
	require.Equal(t, int64(2500), result.DestinationBalanceAfter)
	require.NoError(t, tx.Commit(ctx))
}

func TestInitiateInsufficientFundsCommitsFailedTransfer(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	accountStore := postgres.NewAccountStore(pool)
	transferStore := postgres.NewTransferStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)
	outboxStore := postgres.NewOutboxStore(pool)
	manager := txn.NewManager(pool, 3)

	source := seedAccount(t, ctx, pool, accountStore, "Fonte", 100)
	destination := seedAccount(t, ctx, pool, accountStore, "Destino", 0)

	deps := transferops.Deps{
		Accounts:  accountStore,
		Transfers: transferStore,
		Ledger:    ledgerStore,
		Outbox:    outboxStore,
		Entries:   accountStore,
	}

	var transferID uuid.UUID
	err := manager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		result, err := transferops.Initiate(ctx, tx, deps, transferops.InitiateInput{
			Source:      source,
			Destination: destination,
			Amount:      usd(t, 10000),
		})
		transferID = result.TransferID
		return err
	})
	require.Error(t, err)

	// The business failure must still be a durable record: the
	// transfer row and its failed status survive even though
	// WithTransaction returned an error, because the manager commits
	// on a txn.Commit-wrapped error instead of rolling back.
	tr, getErr := transferStore.Get(ctx, transferID)
	require.NoError(t, getErr)
	require.Equal(t, "failed", string(tr.Status))

	sourceFinal, err := accountStore.Get(ctx, source)
	require.NoError(t, err)
	require.Equal(t, int64(100), sourceFinal.Balance.MinorUnits())
}

func TestConcurrentTransfersConserveTotalBalance(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	accountStore := postgres.NewAccountStore(pool)
	transferStore := postgres.NewTransferStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)
	outboxStore := postgres.NewOutboxStore(pool)
	manager := txn.NewManager(pool, 3)

	source := seedAccount(t, ctx, pool, accountStore, "Fonte", 10000)
	destination := seedAccount(t, ctx, pool, accountStore, "Destino", 0)

	deps := transferops.Deps{
		Accounts:  accountStore,
		Transfers: transferStore,
		Ledger:    ledgerStore,
		Outbox:    outboxStore,
		Entries:   accountStore,
	}

	const n = 50
	const amount = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := manager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
				_, err := transferops.Initiate(ctx, tx, deps, transferops.InitiateInput{
					Source:      source,
					Destination: destination,
					Amount:      usd(t, amount),
				})
				return err
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	sourceFinal, err := accountStore.Get(ctx, source)
	require.NoError(t, err)
	destFinal, err := accountStore.Get(ctx, destination)
	require.NoError(t, err)

	require.Equal(t, int64(10000-n*amount), sourceFinal.Balance.MinorUnits())
	require.Equal(t, int64(n*amount), destFinal.Balance.MinorUnits())
}

func TestTransferListByAccountFiltersAndPaginates(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	accountStore := postgres.NewAccountStore(pool)
	transferStore := postgres.NewTransferStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)
	outboxStore := postgres.NewOutboxStore(pool)
	manager := txn.NewManager(pool, 3)

	source := seedAccount(t, ctx, pool, accountStore, "Fonte", 100000)
	destination := seedAccount(t, ctx, pool, accountStore, "Destino", 0)

	deps := transferops.Deps{
		Accounts:  accountStore,
		Transfers: transferStore,
		Ledger:    ledgerStore,
		Outbox:    outboxStore,
		Entries:   accountStore,
	}

	// Five transfers succeed (completed); one is rejected for
	// insufficient funds (failed).
	for i := 0; i < 5; i++ {
		err := manager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := transferops.Initiate(ctx, tx, deps, transferops.InitiateInput{
				Source:      source,
				Destination: destination,
				Amount:      usd(t, 100),
			})
			return err
		})
		require.NoError(t, err)
	}
	err := manager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := transferops.Initiate(ctx, tx, deps, transferops.InitiateInput{
			Source:      source,
			Destination: destination,
			Amount:      usd(t, 1000000),
		})
		return err
	})
	require.Error(t, err)

	completed, err := transferStore.ListByAccount(ctx, source, transfer.ListFilter{Status: transfer.StatusCompleted, PerPage: 100})
	require.NoError(t, err)
	require.Len(t, completed, 5)

	failed, err := transferStore.ListByAccount(ctx, source, transfer.ListFilter{Status: transfer.StatusFailed, PerPage: 100})
	require.NoError(t, err)
	require.Len(t, failed, 1)

	page1, err := transferStore.ListByAccount(ctx, source, transfer.ListFilter{Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := transferStore.ListByAccount(ctx, source, transfer.ListFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)

	require.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestLedgerFindByAccountAndRangeAndLastBalances(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	accountStore := postgres.NewAccountStore(pool)
	transferStore := postgres.NewTransferStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)
	outboxStore := postgres.NewOutboxStore(pool)
	manager := txn.NewManager(pool, 3)

	source := seedAccount(t, ctx, pool, accountStore, "Fonte", 10000)
	destination := seedAccount(t, ctx, pool, accountStore, "Destino", 0)

	deps := transferops.Deps{
		Accounts:  accountStore,
		Transfers: transferStore,
		Ledger:    ledgerStore,
		Outbox:    outboxStore,
		Entries:   accountStore,
	}

	for i := 0; i < 3; i++ {
		err := manager.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := transferops.Initiate(ctx, tx, deps, transferops.InitiateInput{
				Source:      source,
				Destination: destination,
				Amount:      usd(t, 100),
			})
			return err
		})
		require.NoError(t, err)
	}

	all, err := ledgerStore.FindByAccountAndRange(ctx, source, nil, nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// occurredAt DESC: the most recent debit (lowest resulting balance) comes first.
	require.Equal(t, int64(9700), all[0].BalanceAfter.MinorUnits())

	page1, err := ledgerStore.FindByAccountAndRange(ctx, source, nil, nil, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	page2, err := ledgerStore.FindByAccountAndRange(ctx, source, nil, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	future := time.Now().UTC().Add(time.Hour)
	last, ok, err := ledgerStore.FindLastAtOrBefore(ctx, source, future)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9700), last.BalanceAfter.MinorUnits())

	past := time.Now().UTC().Add(-time.Hour)
	_, ok, err = ledgerStore.FindLastBefore(ctx, source, past)
	require.NoError(t, err)
	require.False(t, ok)
}
