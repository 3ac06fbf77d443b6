package proxy

import "errors"

var (
	ErrInvalidArgument = errors.New("proxy: invalid broker or configuration")
	ErrStopped         = errors.New("proxy: stopped during handshake")
	ErrCreateRejected  = errors.New("proxy: host rejected create")
	ErrCreateTimeout   = errors.New("proxy: create handshake exhausted its retry budget")
)
