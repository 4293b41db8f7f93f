package httpinterface

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shivarthu/shivarthu-signer/internal/core/application"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/calls"
)

const maxBodySize = 4 << 20

// TransferDefaults are the chain parameters used to build balance transfers.
type TransferDefaults struct {
	Decimals    uint8
	PalletIndex uint8
	KeepAlive   bool
}

type accountInfo struct {
	Name      string `json:"name"`
	AccountID string `json:"account_address"`
}

type balanceInfo struct {
	AccountID string `json:"account_address"`
	Nonce     uint32 `json:"nonce"`
	Free      string `json:"free"`
	Reserved  string `json:"reserved"`
	Frozen    string `json:"frozen"`
	// Transferable is the free balance minus the frozen one.
	Transferable string `json:"transferable"`
}

type addAccountRequest struct {
	Name            string `json:"name"`
	Mnemonic        string `json:"mnemonic"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type unlockRequest struct {
	AccountID string `json:"account_id"`
	Password  string `json:"password"`
}

type transferRequest struct {
	Dest      string `json:"dest"`
	Amount    string `json:"amount"`
	KeepAlive *bool  `json:"keep_alive,omitempty"`
}

type remarkRequest struct {
	Remark string `json:"remark"`
}

type callRequest struct {
	Call  string `json:"call"`
	Label string `json:"label"`
}

type addWebhookRequest struct {
	Event    string `json:"event"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret"`
}

type handler struct {
	accountSvc  application.AccountService
	unlockerSvc application.UnlockerService
	signerSvc   application.SignerService
	pubsubSvc   application.PubSubService
	transfer    TransferDefaults
	upgrader    websocket.Upgrader
}

func (h *handler) genSeed(w http.ResponseWriter, r *http.Request) {
	numOfWords := 0
	if words := r.URL.Query().Get("words"); len(words) > 0 {
		n, err := strconv.Atoi(words)
		if err != nil {
			writeError(w, fmt.Errorf("%w: words must be a number", ErrInvalidRequest))
			return
		}
		numOfWords = n
	}

	mnemonic, err := h.accountSvc.GenSeed(r.Context(), numOfWords)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mnemonic": mnemonic})
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountSvc.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	infos := make([]accountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, accountInfo{a.Name, a.AccountID})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": infos})
}

func (h *handler) addAccount(w http.ResponseWriter, r *http.Request) {
	req := addAccountRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountSvc.AddAccount(
		r.Context(), req.Name, req.Mnemonic, req.Password, req.ConfirmPassword,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountInfo{account.Name, account.AccountID})
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountSvc.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountInfo{account.Name, account.AccountID})
}

func (h *handler) getBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	balance, err := h.signerSvc.Balance(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	decimals := h.transfer.Decimals
	writeJSON(w, http.StatusOK, balanceInfo{
		AccountID:    accountID,
		Nonce:        balance.Nonce,
		Free:         calls.FormatAmount(balance.Free, decimals),
		Reserved:     calls.FormatAmount(balance.Reserved, decimals),
		Frozen:       calls.FormatAmount(balance.Frozen, decimals),
		Transferable: calls.FormatAmount(balance.Transferable(), decimals),
	})
}

func (h *handler) removeAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountSvc.RemoveAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) importAccounts(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %s", ErrInvalidRequest, err))
		return
	}

	count, err := h.accountSvc.ImportAccounts(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": count})
}

func (h *handler) exportAccounts(w http.ResponseWriter, r *http.Request) {
	data, err := h.accountSvc.ExportAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="accounts.json"`)
	//nolint
	w.Write(data)
}

func (h *handler) sessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.unlockerSvc.Status(r.Context()))
}

func (h *handler) unlock(w http.ResponseWriter, r *http.Request) {
	req := unlockRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.unlockerSvc.Unlock(r.Context(), req.AccountID, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.unlockerSvc.Status(r.Context()))
}

func (h *handler) lock(w http.ResponseWriter, r *http.Request) {
	h.unlockerSvc.Lock(r.Context())
	writeJSON(w, http.StatusOK, h.unlockerSvc.Status(r.Context()))
}

func (h *handler) submitTransfer(w http.ResponseWriter, r *http.Request) {
	req := transferRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	keepAlive := h.transfer.KeepAlive
	if req.KeepAlive != nil {
		keepAlive = *req.KeepAlive
	}
	call, err := calls.NewTransfer(calls.TransferOpts{
		Dest:        req.Dest,
		Amount:      req.Amount,
		Decimals:    h.transfer.Decimals,
		PalletIndex: h.transfer.PalletIndex,
		KeepAlive:   keepAlive,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, call)
}

func (h *handler) submitRemark(w http.ResponseWriter, r *http.Request) {
	req := remarkRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	call, err := calls.NewRemark(req.Remark)
	if err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, call)
}

func (h *handler) submitCall(w http.ResponseWriter, r *http.Request) {
	req := callRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	call, err := calls.NewRawCall(req.Call, req.Label)
	if err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, call)
}

func (h *handler) submit(
	w http.ResponseWriter, r *http.Request, payload domain.Payload,
) {
	tx, err := h.signerSvc.Submit(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx.Info())
}

func (h *handler) listTransactions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": h.signerSvc.List(),
	})
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.signerSvc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx.Info())
}

func (h *handler) discardTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.signerSvc.Discard(id); err != nil {
		writeError(w, err)
		return
	}
	tx, err := h.signerSvc.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx.Info())
}

func (h *handler) forgetTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.signerSvc.Forget(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.pubsubSvc == nil {
		writeError(w, ErrServiceUnavailable)
		return
	}

	event := r.URL.Query().Get("event")
	if len(event) <= 0 {
		event = ports.UnspecifiedTopic
	}
	webhooks, err := h.pubsubSvc.ListWebhooks(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": webhooks})
}

func (h *handler) addWebhook(w http.ResponseWriter, r *http.Request) {
	if h.pubsubSvc == nil {
		writeError(w, ErrServiceUnavailable)
		return
	}

	req := addWebhookRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.pubsubSvc.AddWebhook(r.Context(), req.Event, req.Endpoint, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.pubsubSvc == nil {
		writeError(w, ErrServiceUnavailable)
		return
	}

	if err := h.pubsubSvc.RemoveWebhook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	return nil
}
