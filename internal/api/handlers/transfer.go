package handlers

import (
	"context"
	"net/http"
	"strconv"

	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/pkg/telemetry"
	"ledgercore/internal/service/transferops"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// listFilterFromQuery parses the shared ?status=&page=&per_page= query
// params spec.md §4.5 requires on transfer-listing endpoints. An
// unrecognized status value is passed through verbatim rather than
// rejected, so the store's "no match" behavior (an empty result set)
// is the sole source of truth for valid statuses.
func listFilterFromQuery(c *gin.Context) transfer.ListFilter {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return transfer.ListFilter{
		Status:  transfer.Status(c.Query("status")),
		Page:    page,
		PerPage: perPage,
	}
}

type initiateTransferRequest struct {
	Source      string `json:"source_account_id"`
	Destination string `json:"destination_account_id"`
	Amount      int64  `json:"amount_minor_units"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type transferResponse struct {
	ID            uuid.UUID `json:"id"`
	Reference     string    `json:"reference"`
	Source        uuid.UUID `json:"source_account_id"`
	Destination   uuid.UUID `json:"destination_account_id"`
	Amount        int64     `json:"amount_minor_units"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	FailureCode   string    `json:"failure_code,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func toTransferResponse(tr *transfer.Transfer) transferResponse {
	return transferResponse{
		ID:            tr.ID,
		Reference:     tr.Reference,
		Source:        tr.Source,
		Destination:   tr.Destination,
		Amount:        tr.Amount.MinorUnits(),
		Currency:      tr.Amount.Currency(),
		Status:        string(tr.Status),
		Description:   tr.Description,
		FailureCode:   tr.FailureCode,
		FailureReason: tr.FailureReason,
	}
}

// MakeInitiateTransferHandler implements POST /transfers (spec.md §4.8).
func MakeInitiateTransferHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req initiateTransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierrors.NewValidationError("invalid request body"))
			return
		}

		source, err := uuid.Parse(req.Source)
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid source_account_id"))
			return
		}
		destination, err := uuid.Parse(req.Destination)
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid destination_account_id"))
			return
		}
		amount, err := money.New(req.Amount, req.Currency)
		if err != nil {
			respondError(c, apierrors.NewValidationError(err.Error()))
			return
		}

		var result transferops.InitiateResult
		err = container.Tx.WithTransaction(c.Request.Context(), func(ctx context.Context, tx pgx.Tx) error {
			r, err := transferops.Initiate(ctx, tx, container.deps(), transferops.InitiateInput{
				Source:      source,
				Destination: destination,
				Amount:      amount,
				Description: req.Description,
			})
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err != nil {
			telemetry.TransfersInitiatedTotal.WithLabelValues("failed").Inc()
			respondError(c, err)
			return
		}

		telemetry.TransfersInitiatedTotal.WithLabelValues("completed").Inc()
		c.JSON(http.StatusCreated, gin.H{"data": gin.H{
			"transfer_id":  result.TransferID,
			"reference":    result.Reference,
			"status":       result.Status,
			"source":       gin.H{"balance_minor_units": result.SourceAfter},
			"destination":  gin.H{"balance_minor_units": result.DestAfter},
		}})
	}
}

// MakeReverseTransferHandler implements POST /transfers/{id}/reverse
// (spec.md §4.9).
func MakeReverseTransferHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid transfer id"))
			return
		}

		var result transferops.ReverseResult
		err = container.Tx.WithTransaction(c.Request.Context(), func(ctx context.Context, tx pgx.Tx) error {
			r, err := transferops.Reverse(ctx, tx, container.deps(), id)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}

		telemetry.TransfersReversedTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"transfer_id": result.TransferID,
			"status":      result.Status,
			"source":      gin.H{"balance_minor_units": result.SourceAfter},
			"destination": gin.H{"balance_minor_units": result.DestAfter},
		}})
	}
}

// MakeGetTransferHandler implements GET /transfers/{id}.
func MakeGetTransferHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid transfer id"))
			return
		}

		tr, err := container.Transfers.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": toTransferResponse(tr)})
	}
}

// MakeListTransfersHandler implements GET /transfers?account_id=...
func MakeListTransfersHandler(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountIDStr := c.Query("account_id")
		if accountIDStr == "" {
			respondError(c, apierrors.NewValidationError("account_id query parameter is required"))
			return
		}
		accountID, err := uuid.Parse(accountIDStr)
		if err != nil {
			respondError(c, apierrors.NewValidationError("invalid account_id"))
			return
		}

		transfers, err := container.Transfers.ListByAccount(c.Request.Context(), accountID, listFilterFromQuery(c))
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
