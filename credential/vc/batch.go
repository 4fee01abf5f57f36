package vc

import "fmt"

// BatchError records why the item at Index failed.
type BatchError struct {
	Index  int
	Reason string
	Err    error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
}

func (e BatchError) Unwrap() error {
	return e.Err
}

func newBatchError(index int, err error) BatchError {
	return BatchError{Index: index, Reason: err.Error(), Err: err}
}
