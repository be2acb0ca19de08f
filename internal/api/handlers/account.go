package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ledgercore/internal/domain/account"
	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type createAccountRequest struct {
	Owner          string `json:"owner"`
	Currency       string `json:"currency"`
	InitialBalance int64  `json:"initial_balance_minor_units"`
}

type accountResponse struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"owner"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance_minor_units"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

func toAccountResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Owner:     a.Owner,
		Currency:  a.Currency,
		Balance:   a.Balance.MinorUnits(),
		Status:    string(a.Status),
		Version:   a.Version,
		CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		UpdatedAt: a.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
}

func respondError(c *gin.Context, err error) {
	apiErr := apierrors.AsAPIError(err)
	logging.Warn("request failed", map[string]interface{}{
		"path":  c.FullPath(),
		"code":  apiErr.Code,
		"error": err.Error(),
	})
	c.JSON(apiErr.Status, apierrors.Envelope{Error: apiErr})
}

// MakeCreateAccountHandler opens a new account, per spec.md §4.2.
func MakeCreateAccountHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierrors.NewValidationError("invalid request body"))
			return
		}

		balance, err := money.New(req.InitialBalance, req.Currency)
		if err != nil {
			respondError(c, apierrors.NewValidationError(err.Error()))
			return
		}

		id := uuid.New()
		now := container.now()
		acc, err := account.Open(id, req.Owner, balance, now)
		if err != nil {
			respondError(c, err)
			return
		}

		err = container.Tx.WithTransaction(c.Request.Context(), func(ctx context.Context, tx pgx.Tx) error {
			return container.Accounts.Create(ctx, tx, acc)
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": toAccountResponse(acc)})
	}
}

// MakeGetAccountHandler reads a single account by id.
func MakeGetAccountHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid account id"))
			return
		}

		acc, err := container.Accounts.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": toAccountResponse(acc)})
	}
}

// accountTransition runs one account lifecycle transition (freeze,
// unfreeze, close) inside a lock-and-save transaction, generalizing
// the three near-identical handlers into one helper since they only
// differ in which Account method they call.
func accountTransition(container *Container, transition func(a *account.Account, now time.Time) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid account id"))
			return
		}

		var acc *account.Account
		now := container.now()
		err = container.Tx.WithTransaction(c.Request.Context(), func(ctx context.Context, tx pgx.Tx) error {
			a, err := container.Accounts.GetForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := transition(a, now); err != nil {
				return err
			}
			if err := container.Accounts.Save(ctx, tx, a); err != nil {
				return err
			}
			acc = a
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": toAccountResponse(acc)})
	}
}

// MakeFreezeAccountHandler implements POST /accounts/{id}/freeze.
func MakeFreezeAccountHandler(container *Container) gin.HandlerFunc {
	return accountTransition(container, func(a *account.Account, now time.Time) error { return a.Freeze(now) })
}

// MakeUnfreezeAccountHandler implements POST /accounts/{id}/unfreeze.
func MakeUnfreezeAccountHandler(container *Container) gin.HandlerFunc {
	return accountTransition(container, func(a *account.Account, now time.Time) error { return a.Unfreeze(now) })
}

// MakeCloseAccountHandler implements POST /accounts/{id}/close.
func MakeCloseAccountHandler(container *Container) gin.HandlerFunc {
	return accountTransition(container, func(a *account.Account, now time.Time) error { return a.Close(now) })
}

// MakeListAccountTransfersHandler implements GET /accounts/{id}/transfers.
func MakeListAccountTransfersHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid account id"))
			return
		}

		transfers, err := container.Transfers.ListByAccount(c.Request.Context(), id, listFilterFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]transferResponse, 0, len(transfers))
		for _, tr := range transfers {
			out = append(out, toTransferResponse(tr))
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	}
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// parseOptionalTime parses an RFC3339 query param, returning nil for an
// absent or empty value.
func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MakeAccountStatementHandler implements GET /accounts/{id}/statement,
// returning a paginated, date-ranged statement of ledger entries for
// the account plus opening/closing balances (spec.md §4.6). Query
// params: from, to (RFC3339, both optional/half-open range), page
// (1-indexed), per_page.
func MakeAccountStatementHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid account id"))
			return
		}

		from, err := parseOptionalTime(c.Query("from"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid from: must be RFC3339"))
			return
		}
		to, err := parseOptionalTime(c.Query("to"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid to: must be RFC3339"))
			return
		}
		page, _ := strconv.Atoi(c.Query("page"))
		perPage, _ := strconv.Atoi(c.Query("per_page"))

		ctx := c.Request.Context()
		entries, err := container.Ledger.FindByAccountAndRange(ctx, id, from, to, page, perPage)
		if err != nil {
			respondError(c, err)
			return
		}

		type line struct {
			EntryID      uuid.UUID `json:"entry_id"`
			TransferID   uuid.UUID `json:"transfer_id"`
			EntryType    string    `json:"entry_type"`
			TransferType string    `json:"transfer_type"`
			Amount       int64     `json:"amount_minor_units"`
			BalanceAfter int64     `json:"balance_after_minor_units"`
			OccurredAt   string    `json:"occurred_at"`
		}
		out := make([]line, 0, len(entries))
		for _, e := range entries {
			out = append(out, line{
				EntryID:      e.ID,
				TransferID:   e.TransferID,
				EntryType:    string(e.EntryType),
				TransferType: string(e.TransferType),
				Amount:       e.Amount.MinorUnits(),
				BalanceAfter: e.BalanceAfter.MinorUnits(),
				OccurredAt:   e.OccurredAt.Format(timeLayout),
			})
		}

		resp := gin.H{"data": out, "page": page, "per_page": perPage}
		if from != nil {
			if opening, ok, err := container.Ledger.FindLastBefore(ctx, id, *from); err == nil && ok {
				resp["opening_balance_minor_units"] = opening.BalanceAfter.MinorUnits()
			}
		}
		closingAt := time.Now().UTC()
		if to != nil {
			closingAt = *to
		}
		if closing, ok, err := container.Ledger.FindLastAtOrBefore(ctx, id, closingAt); err == nil && ok {
			resp["closing_balance_minor_units"] = closing.BalanceAfter.MinorUnits()
		}

		c.JSON(http.StatusOK, resp)
	}
}
