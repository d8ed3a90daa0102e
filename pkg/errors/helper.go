// Copyright 2025 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import "github.com/pingcap/errors"

// WrapError wraps err with the given RFC error, formatting args into the
// RFC error's message template. Returns nil if err is nil, so call sites can
// write `return errors.WrapError(ErrXXX, underlyingErr)` unconditionally.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

// RFCCode extracts the RFC error code from err, if err (or anything it
// wraps) originated from one of this package's *errors.Error values.
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	type rfcCoder interface {
		RFCCode() errors.RFCErrorCode
	}
	type causer interface {
		Cause() error
	}
	for err != nil {
		if rc, ok := err.(rfcCoder); ok {
			return rc.RFCCode(), true
		}
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return "", false
}
