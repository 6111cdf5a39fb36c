package service

import "errors"

// ErrWriteConflict is returned when a meta write keeps losing the
// compare-and-swap race after every retry.
var ErrWriteConflict = errors.New("user meta write conflict")

var errLostRace = errors.New("user meta version changed")

var errOwnerMoved = errors.New("focus record changed owner")
