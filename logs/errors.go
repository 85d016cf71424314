// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logs

import "github.com/pkg/errors"

var errInvalidLogLevel = errors.New("logs: invalid log level")
