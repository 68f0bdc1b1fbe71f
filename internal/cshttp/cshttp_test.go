package cshttp_test

import (
	"github.com/AdguardTeam/golibs/errors"
)

// Common constants for tests.
const (
	testError errors.Error = "test error"
	testSrv                = "testServer/1.0"
)
