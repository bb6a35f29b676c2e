package invoicing

import "errors"

var ErrAttributeNotFound = errors.New("invoicing: accounting attribute not found")
// ErrUnmatchedRelationship is reported per material, so its text carries no
// package prefix.
var ErrUnmatchedRelationship = errors.New("no active counterparty relationship")
var ErrDocumentNotFound = errors.New("invoicing: document not found")
var ErrAlreadySynced = errors.New("invoicing: document already synced")
var ErrEmptyGroup = errors.New("invoicing: empty document group")
