package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"sms-transactions/pkg/transaction"

	"github.com/gorilla/mux"
)

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) {
		// well-formed but beyond any stored id
		return 0, fmt.Errorf("%w: %s", transaction.ErrNotFound, raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", transaction.ErrInvalidID, raw)
	}
	return id, nil
}

// decodeBody decodes a single JSON object from the request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after object", transaction.ErrMalformedBody)
	}
	return nil
}

func decodeError(err error) error {
	var verr *transaction.ValidationError
	if errors.As(err, &verr) {
		return verr
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &transaction.ValidationError{
			Field:  typeErr.Field,
			Reason: "must be a " + typeErr.Type.String(),
		}
	}

	return fmt.Errorf("%w: %v", transaction.ErrMalformedBody, err)
}
