// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/kaspanet/spvwallet/chainhash"
	"github.com/kaspanet/spvwallet/peer"
)

// tcpTransport is a minimal, real-network stand-in for the excluded
// wire-framing collaborator named in peer.go's package doc ("the wire
// framing of named messages is the excluded collaborator"). It owns a
// live TCP connection to the remote peer; Dial/Close are real. The
// Send* methods are left unimplemented because encoding/decoding the
// Bitcoin-family wire format (version, inv, getdata, merkleblock, ...)
// is out of this module's scope, exactly as the actual parsing of the
// merkle proof is excluded from peer.MerkleBlockMsg. A production
// deployment supplies a Transport that frames real messages over conn.
type tcpTransport struct {
	mu   sync.Mutex
	conn net.Conn
}

func newTCPTransport() *tcpTransport {
	return &tcpTransport{}
}

func (t *tcpTransport) Dial(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *tcpTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

var errWireFramingNotImplemented = fmt.Errorf("spvwalletd: wire message framing is not wired; supply a production Transport")

func (t *tcpTransport) SendFilterload(filter []byte, hashFuncs, tweak uint32, flags byte) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendGetblocks(locators []chainhash.Hash, stopHash chainhash.Hash) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendGetheaders(locators []chainhash.Hash, stopHash chainhash.Hash) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendGetdata(items []peer.InvItem) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendInv(items []peer.InvItem) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendPing(nonce uint64) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendPong(nonce uint64) error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendMempool() error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendGetaddr() error {
	return errWireFramingNotImplemented
}

func (t *tcpTransport) SendFeeFilter(feePerKb uint64) error {
	return errWireFramingNotImplemented
}

var _ peer.Transport = (*tcpTransport)(nil)
