package nntp

import "errors"

var errTimeoutTestConnection = errors.New("nntp: test connection timed out")
