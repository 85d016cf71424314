// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import "github.com/pkg/errors"

// errDisconnected is delivered to any pending completion callbacks that
// were still outstanding when the peer disconnected.
var errDisconnected = errors.New("peer: disconnected with request outstanding")

// errTimedOut is reported to the listener when a scheduled disconnect
// timer fires.
var errTimedOut = errors.New("peer: scheduled disconnect timed out")
