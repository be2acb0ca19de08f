// Command reconcile is the operator recovery CLI of spec.md §4.13: a
// one-shot balance-vs-ledger pass plus dead-letter requeue commands,
// run from cron or by hand rather than left inside the API process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"ledgercore/internal/pkg/config"
	"ledgercore/internal/service/reconciliation"
	"ledgercore/internal/store/postgres"

	"github.com/google/uuid"
)

// reconcileSource adapts the account and ledger stores into the single
// reconciliation.Source the service package expects.
type reconcileSource struct {
	accounts *postgres.AccountStore
	ledger   *postgres.LedgerStore
}

func (s reconcileSource) AccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.accounts.AccountIDs(ctx)
}

func (s reconcileSource) LiveBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.accounts.LiveBalance(ctx, accountID)
}

func (s reconcileSource) LedgerBalance(ctx context.Context, accountID uuid.UUID) (int64, bool, error) {
	return s.ledger.LedgerBalance(ctx, accountID)
}

func main() {
	var (
		accountFlag   = flag.String("account", "", "reconcile a single account ID instead of every account")
		requeueDead   = flag.Bool("requeue-dead-letters", false, "reset dead-lettered outbox events back to pending")
		minAttempts   = flag.Int("min-attempts", 0, "only requeue outbox events with at least this many attempts (<= 0: the configured dead-letter threshold)")
		requeueOutbox = flag.String("requeue-outbox", "", "reset a single outbox event ID back to pending")
		stuck         = flag.Bool("check-stuck", false, "report unpublished outbox events older than the configured stuck threshold")
	)
	flag.Parse()

	appCfg := config.Load()
	cfg := postgres.NewConfigFromEnv()
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	accounts := postgres.NewAccountStore(pool)
	ledger := postgres.NewLedgerStore(pool)
	outboxStore := postgres.NewOutboxStore(pool)

	if *stuck {
		n, err := outboxStore.CountStuck(ctx, appCfg.Outbox.StuckMinutes)
		if err != nil {
			log.Fatalf("failed to count stuck outbox events: %v", err)
		}
		fmt.Printf("%d outbox event(s) unpublished for more than %d minute(s)\n", n, appCfg.Outbox.StuckMinutes)
		if n > 0 {
			os.Exit(1)
		}
		return
	}

	if *requeueOutbox != "" {
		id, err := uuid.Parse(*requeueOutbox)
		if err != nil {
			log.Fatalf("invalid outbox event id: %v", err)
		}
		if err := outboxStore.ResetForRequeue(ctx, id); err != nil {
			log.Fatalf("failed to requeue outbox event: %v", err)
		}
		fmt.Printf("requeued outbox event %s\n", id)
		return
	}

	if *requeueDead {
		threshold := *minAttempts
		if threshold <= 0 {
			threshold = appCfg.Core.OutboxMaxAttempts
		}
		n, err := outboxStore.ResetDeadLetters(ctx, threshold)
		if err != nil {
			log.Fatalf("failed to requeue dead letters: %v", err)
		}
		fmt.Printf("requeued %d dead-lettered outbox event(s)\n", n)
		return
	}

	src := reconcileSource{accounts: accounts, ledger: ledger}

	var results []reconciliation.Result
	if *accountFlag != "" {
		id, err := uuid.Parse(*accountFlag)
		if err != nil {
			log.Fatalf("invalid account id: %v", err)
		}
		result, err := reconciliation.RunOne(ctx, src, id)
		if err != nil {
			log.Fatalf("reconciliation failed: %v", err)
		}
		results = []reconciliation.Result{result}
	} else {
		results, err = reconciliation.Run(ctx, src, appCfg.Core.BalanceReconcileBatch)
		if err != nil {
			log.Fatalf("reconciliation failed: %v", err)
		}
	}

	mismatches := 0
	for _, r := range results {
		fmt.Printf("%s  live=%d  ledger=%d  verdict=%s\n", r.AccountID, r.LiveBalance, r.LedgerBalance, r.Verdict)
		if r.Verdict != reconciliation.VerdictMatch {
			mismatches++
		}
	}
	fmt.Printf("%d account(s) checked, %d mismatch(es)\n", len(results), mismatches)
	if mismatches > 0 {
		os.Exit(1)
	}
}
