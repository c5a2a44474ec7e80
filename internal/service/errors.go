package service

import "errors"

var (
	ErrNotFound             = errors.New("error not found")
	ErrInvalidArgument      = errors.New("error invalid argument")
	ErrDuplicateKey         = errors.New("error duplicate key")
	ErrInsufficientFunds    = errors.New("error insufficient funds")
	ErrInsufficientSupply   = errors.New("error insufficient supply")
	ErrInsufficientHoldings = errors.New("error insufficient holdings")
	ErrLimitExceeded        = errors.New("error limit exceeded")
)
