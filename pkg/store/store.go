// Package store defines the transaction store contract.
package store

import "sms-transactions/pkg/transaction"

// Store is the CRUD surface over the in-memory transactions.
// Returned records are copies; mutating them does not affect the store.
type Store interface {
	// List returns every transaction in insertion order that matches filter.
	List(filter transaction.Filter) []transaction.Transaction

	// Get returns the transaction with the given id, or transaction.ErrNotFound.
	Get(id int) (transaction.Transaction, error)

	// Create validates req, assigns the next id and stores the new transaction.
	Create(req transaction.CreateRequest) (transaction.Transaction, error)

	// Update applies the fields present in req to the transaction with the given id.
	Update(id int, req transaction.UpdateRequest) (transaction.Transaction, error)

	// Delete removes the transaction with the given id and returns it.
	Delete(id int) (transaction.Transaction, error)

	// Len returns the number of live transactions.
	Len() int
}
