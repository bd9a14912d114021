package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sms-transactions/pkg/transaction"
)

const (
	msgListed  = "Transactions retrieved successfully"
	msgFound   = "Transaction found"
	msgCreated = "Transaction created successfully"
	msgUpdated = "Transaction updated successfully"
	msgDeleted = "Transaction deleted successfully"

	msgNotFound       = "Transaction not found"
	msgInvalidID      = "Invalid transaction ID format"
	msgInvalidJSON    = "Invalid JSON data"
	msgInvalidRoute   = "Invalid endpoint"
	msgInternalServer = "Internal server error"
)

type listResponse struct {
	Transactions []transaction.Transaction `json:"transactions"`
	TotalCount   int                       `json:"total_count"`
	Message      string                    `json:"message"`
}

type transactionResponse struct {
	Transaction transaction.Transaction `json:"transaction"`
	Message     string                  `json:"message"`
}

type deleteResponse struct {
	DeletedTransaction transaction.Transaction `json:"deleted_transaction"`
	Message            string                  `json:"message"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the error envelope. The error field carries the
// client-facing description; message carries the status text.
func writeError(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, errorResponse{
		Error:      description,
		Message:    http.StatusText(status),
		StatusCode: status,
	})
}

// statusFor maps err to a response status and client-facing description.
func statusFor(err error) (int, string) {
	var verr *transaction.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message()
	case errors.Is(err, transaction.ErrMalformedBody):
		return http.StatusBadRequest, msgInvalidJSON
	case errors.Is(err, transaction.ErrInvalidID):
		return http.StatusBadRequest, msgInvalidID
	case errors.Is(err, transaction.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, transaction.ErrUnknownEndpoint):
		return http.StatusNotFound, msgInvalidRoute
	default:
		return http.StatusInternalServerError, msgInternalServer
	}
}
