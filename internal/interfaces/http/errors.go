package httpinterface

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shivarthu/shivarthu-signer/internal/core/application/pubsub"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/apitoken"
	"github.com/shivarthu/shivarthu-signer/pkg/calls"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidRequest is returned for requests whose body can't be decoded.
	ErrInvalidRequest = errors.New("invalid request body")
	// ErrServiceUnavailable is returned by the webhook routes if no pubsub
	// service is configured.
	ErrServiceUnavailable = errors.New("service not available")
	// ErrForbiddenOrigin is returned for browser requests coming from an
	// origin that is not allowed.
	ErrForbiddenOrigin = errors.New("origin not allowed")
	// ErrUnsupportedMediaType is returned for POST requests whose body is not
	// json.
	ErrUnsupportedMediaType = errors.New("content type must be application/json")
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrAccountNotFound, http.StatusNotFound},
	{domain.ErrTransactionNotFound, http.StatusNotFound},
	{ports.ErrSubscriptionNotFound, http.StatusNotFound},
	{domain.ErrWrongPassword, http.StatusUnauthorized},
	{apitoken.ErrMissingToken, http.StatusUnauthorized},
	{apitoken.ErrInvalidToken, http.StatusUnauthorized},
	{ErrForbiddenOrigin, http.StatusForbidden},
	{ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
	{domain.ErrAccountAlreadyExists, http.StatusConflict},
	{domain.ErrTransactionInProgress, http.StatusConflict},
	{domain.ErrCorruptAccount, http.StatusUnprocessableEntity},
	{ErrServiceUnavailable, http.StatusServiceUnavailable},
	{ports.ErrConnect, http.StatusBadGateway},
	{ports.ErrQuery, http.StatusBadGateway},
	{ErrInvalidRequest, http.StatusBadRequest},
	{domain.ErrNullAccountID, http.StatusBadRequest},
	{domain.ErrNullEncryptedSecret, http.StatusBadRequest},
	{domain.ErrUnreadableSecret, http.StatusBadRequest},
	{domain.ErrNullMnemonic, http.StatusBadRequest},
	{domain.ErrNullPassword, http.StatusBadRequest},
	{domain.ErrPasswordMismatch, http.StatusBadRequest},
	{domain.ErrNullPayload, http.StatusBadRequest},
	{wallet.ErrInvalidMnemonic, http.StatusBadRequest},
	{wallet.ErrInvalidWordCount, http.StatusBadRequest},
	{wallet.ErrNullPassphrase, http.StatusBadRequest},
	{wallet.ErrInvalidAddress, http.StatusBadRequest},
	{wallet.ErrInvalidAddressChecksum, http.StatusBadRequest},
	{calls.ErrInvalidDestination, http.StatusBadRequest},
	{calls.ErrInvalidAmount, http.StatusBadRequest},
	{calls.ErrNullRemark, http.StatusBadRequest},
	{calls.ErrInvalidCallData, http.StatusBadRequest},
	{pubsub.ErrInvalidEventType, http.StatusBadRequest},
	{ports.ErrInvalidEndpoint, http.StatusBadRequest},
}

func statusFromError(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Warn("request failed")
	}
	writeJSON(w, status, errorResponse{err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("failed to write response")
	}
}
