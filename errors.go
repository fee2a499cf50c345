package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// errNoTransactions is the message explorers use when an account has no
// entries for the requested transaction list.
const errNoTransactions = "No transactions found"

type InvalidInputError struct {
	message string
}

func (e *InvalidInputError) Error() string {
	return e.message
}

type UnknownNetworkError struct {
	network string
}

func (e *UnknownNetworkError) Error() string {
	return fmt.Sprintf("unknown network: %q", e.network)
}

type ContractNotFoundError struct {
	address string
}

func (e *ContractNotFoundError) Error() string {
	return "Contract not found at address: " + e.address
}

// DomainError is a business-level failure reported by the explorer in its
// response envelope, e.g. "No transactions found" or an invalid API key.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// TransportError means the explorer could not be reached or answered with
// something that is not a response envelope.
type TransportError struct {
	Network string
	Action  string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("explorer request %s on %s failed: %v", e.Action, e.Network, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying failure was a timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}

// ProxyCycleError is returned when following proxy implementations revisits
// an address or exceeds the hop limit.
type ProxyCycleError struct {
	Path []string
	// MaxHops is set when the chain was cut off by the hop limit rather
	// than by a revisited address.
	MaxHops int
}

func (e *ProxyCycleError) Error() string {
	if e.MaxHops > 0 {
		return fmt.Sprintf("proxy chain exceeds %d hops: %s", e.MaxHops, strings.Join(e.Path, " -> "))
	}
	return "proxy cycle detected: " + strings.Join(e.Path, " -> ")
}

func isNoTransactions(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Message == errNoTransactions
}
