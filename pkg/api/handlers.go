package api

import (
	"net/http"
	"time"

	"sms-transactions/pkg/auth"
	"sms-transactions/pkg/events"
	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/transaction"

	"go.uber.org/zap"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := transaction.Filter{
		Status: query.Get("status"),
		Type:   query.Get("type"),
	}

	list := s.store.List(filter)
	if list == nil {
		list = []transaction.Transaction{}
	}

	writeJSON(w, http.StatusOK, listResponse{
		Transactions: list,
		TotalCount:   len(list),
		Message:      msgListed,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t, err := s.store.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse{Transaction: t, Message: msgFound})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req transaction.CreateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	t, err := s.store.Create(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r, events.KindCreated, t)
	writeJSON(w, http.StatusCreated, transactionResponse{Transaction: t, Message: msgCreated})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// existence is checked before the body is read
	if _, err := s.store.Get(id); err != nil {
		s.fail(w, r, err)
		return
	}

	var req transaction.UpdateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	t, err := s.store.Update(id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r, events.KindUpdated, t)
	writeJSON(w, http.StatusOK, transactionResponse{Transaction: t, Message: msgUpdated})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t, err := s.store.Delete(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r, events.KindDeleted, t)
	writeJSON(w, http.StatusOK, deleteResponse{DeletedTransaction: t, Message: msgDeleted})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"transactions": s.store.Len(),
		"timestamp":    transaction.FormatTimestamp(time.Now()),
	})
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, transaction.ErrUnknownEndpoint)
}

// fail renders err as an error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, description := statusFor(err)

	fields := []zap.Field{
		logging.RequestID(requestIDFrom(r.Context())),
		zap.String("kind", transaction.ClassifyError(err)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}

	writeError(w, status, description)
}

// publish enqueues a change event. Failures never reach the client.
func (s *Server) publish(r *http.Request, kind events.Kind, t transaction.Transaction) {
	if s.events == nil {
		return
	}

	actor, _ := auth.UserFromContext(r.Context())
	if err := s.events.Enqueue(r.Context(), events.NewEvent(kind, actor, t)); err != nil {
		s.logger.Debug("event not enqueued",
			zap.String("kind", string(kind)),
			logging.TransactionID(t.ID),
			zap.Error(err),
		)
	}
}
