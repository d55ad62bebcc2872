package handlers

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
	"github.com/qqdog1/ws/internal/infrastructure/external/blockchain/ethereum"
	"github.com/qqdog1/ws/pkg/logger"
)

// WalletAPI is the wallet service as seen by the REST layer
type WalletAPI interface {
	Chain() string
	Currencies() []string
	Decimals(currency string) (int, error)
	CreateAddress(ctx context.Context) (*entities.UserAddress, error)
	GetAddress(ctx context.Context, id int) (*entities.UserAddress, error)
	ListAddresses(ctx context.Context) ([]entities.UserAddress, error)
	GetNativeBalance(ctx context.Context, address string) (*big.Int, error)
	GetTokenBalance(ctx context.Context, address, currency string) (*big.Int, error)
	TransferNative(ctx context.Context, userID int, to, amount string) (*entities.UserTransaction, error)
	TransferToken(ctx context.Context, currency string, userID int, to, amount string) (*entities.UserTransaction, error)
	ListWithdrawals(ctx context.Context, userID int) ([]entities.UserTransaction, error)
	ListDeposits(ctx context.Context, userID int) ([]entities.UserTransaction, error)
	GetTransaction(ctx context.Context, hash string) (*entities.UserTransaction, error)
	GetLastBlock(ctx context.Context, chain string) (*entities.Block, error)
}

// WalletHandler handles address, balance and transfer requests
type WalletHandler struct {
	wallet WalletAPI
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(wallet WalletAPI) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// BalanceResponse carries the base unit balance and its decimal rendering
type BalanceResponse struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Amount   string `json:"amount"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error       string                    `json:"error"`
	Message     string                    `json:"message"`
	Transaction *entities.UserTransaction `json:"transaction,omitempty"`
}

func HeartBeat(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// CreateAddress generates a new custodial address
func (h *WalletHandler) CreateAddress() func(c echo.Context) error {
	return func(c echo.Context) error {
		addr, err := h.wallet.CreateAddress(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, addr)
	}
}

func (h *WalletHandler) ListAddresses() func(c echo.Context) error {
	return func(c echo.Context) error {
		addrs, err := h.wallet.ListAddresses(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, addrs)
	}
}

func (h *WalletHandler) GetAddress() func(c echo.Context) error {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return writeError(c, err)
		}
		addr, err := h.wallet.GetAddress(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, addr)
	}
}

// Balance returns the native balance, or the token balance when :currency is set
func (h *WalletHandler) Balance() func(c echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		address := c.Param("address")
		currency := c.Param("currency")

		decimals, err := h.wallet.Decimals(currency)
		if err != nil {
			return writeError(c, err)
		}

		var balance *big.Int
		if currency == "" || strings.EqualFold(currency, h.wallet.Chain()) {
			currency = h.wallet.Chain()
			balance, err = h.wallet.GetNativeBalance(ctx, address)
		} else {
			balance, err = h.wallet.GetTokenBalance(ctx, address, currency)
		}
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(http.StatusOK, BalanceResponse{
			Address:  address,
			Currency: currency,
			Balance:  balance.String(),
			Amount:   ethereum.ConvertBigIntToToken(balance, decimals),
		})
	}
}

// Transfer sends the native coin, or the token named by :currency.
// Form fields: id, to, amount.
func (h *WalletHandler) Transfer() func(c echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		currency := c.Param("currency")
		to := c.FormValue("to")
		amount := c.FormValue("amount")

		userID, err := strconv.Atoi(c.FormValue("id"))
		if err != nil {
			return writeError(c, apperr.New(apperr.IdNotFound, "transfer", "invalid id %q", c.FormValue("id")))
		}

		var tx *entities.UserTransaction
		if currency == "" {
			tx, err = h.wallet.TransferNative(ctx, userID, to, amount)
		} else {
			tx, err = h.wallet.TransferToken(ctx, currency, userID, to, amount)
		}
		if err != nil {
			logger.RequestLogger(c).WithError(err).WithFields(map[string]interface{}{
				"user_id":  userID,
				"to":       to,
				"amount":   amount,
				"currency": currency,
			}).Warn("Transfer failed")
			return writeErrorWithTx(c, err, tx)
		}
		return c.JSON(http.StatusOK, tx)
	}
}

func (h *WalletHandler) Withdrawals() func(c echo.Context) error {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return writeError(c, err)
		}
		txs, err := h.wallet.ListWithdrawals(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, txs)
	}
}

func (h *WalletHandler) Deposits() func(c echo.Context) error {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return writeError(c, err)
		}
		txs, err := h.wallet.ListDeposits(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, txs)
	}
}

func (h *WalletHandler) Transaction() func(c echo.Context) error {
	return func(c echo.Context) error {
		tx, err := h.wallet.GetTransaction(c.Request().Context(), c.Param("hash"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, tx)
	}
}

func (h *WalletHandler) LastBlock() func(c echo.Context) error {
	return func(c echo.Context) error {
		block, err := h.wallet.GetLastBlock(c.Request().Context(), c.Param("chain"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, block)
	}
}

// Currencies lists the native coin followed by the configured tokens
func (h *WalletHandler) Currencies() func(c echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"chain":      h.wallet.Chain(),
			"currencies": h.wallet.Currencies(),
		})
	}
}

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, apperr.New(apperr.IdNotFound, "pathID", "invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

// StatusOf maps an error kind to its HTTP status
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.IdNotFound, apperr.UnknownCurrency:
		return http.StatusNotFound
	case apperr.InvalidAmount, apperr.InvalidAddress:
		return http.StatusBadRequest
	case apperr.InsufficientFunds, apperr.InvalidNonce, apperr.RevertedExecution:
		return http.StatusUnprocessableEntity
	case apperr.ReceiptTimeout:
		return http.StatusAccepted
	case apperr.RpcUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	return writeErrorWithTx(c, err, nil)
}

func writeErrorWithTx(c echo.Context, err error, tx *entities.UserTransaction) error {
	kind := apperr.KindOf(err)
	status := StatusOf(kind)
	if status >= http.StatusInternalServerError {
		logger.RequestLogger(c).WithError(err).Error("Request failed")
	}
	return c.JSON(status, ErrorResponse{
		Error:       string(kind),
		Message:     err.Error(),
		Transaction: tx,
	})
}
