// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"net"
	"time"
)

// ServiceFlag identifies the services supported by a peer, advertised in
// its version message and stored alongside its cached address.
type ServiceFlag uint64

const (
	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeBloom indicates a peer supports bloom filtering.
	SFNodeBloom

	// SFNodeCF indicates a peer supports committed filters (cfilters).
	SFNodeCF
)

// BitcoinNet represents the magic bytes a peer uses to identify the
// start of a new message and which network a message is intended for.
type BitcoinNet uint32

// Constants used to indicate the message bitcoin network.
const (
	MainNet BitcoinNet = 0xd9b4bef9
	TestNet BitcoinNet = 0xdab5bffa
	TestNet3 BitcoinNet = 0x0709110b
	SimNet BitcoinNet = 0x12141c16
)

// NetAddress is the persisted/relayed shape of a peer address: a 128-bit
// (v4-mapped or native v6) IP, a 16-bit port, a services bitmask and a
// last-seen timestamp, matching the wire layout named in spec.md §6.
type NetAddress struct {
	Timestamp time.Time
	Services  ServiceFlag
	IP        net.IP
	Port      uint16
}

// NewNetAddressTimestamp creates a new NetAddress using the provided
// timestamp, ip, port, and supported service flags.
func NewNetAddressTimestamp(timestamp time.Time, services ServiceFlag, ip net.IP, port uint16) *NetAddress {
	return &NetAddress{
		Timestamp: timestamp,
		Services:  services,
		IP:        ip,
		Port:      port,
	}
}

// InvType represents the allowed types of inventory vectors.
type InvType uint32

// Inventory vector types.
const (
	InvTypeTx InvType = 1
	InvTypeBlock InvType = 2
	InvTypeFilteredBlock InvType = 3
)

// InvVect defines a bitcoin inventory vector, used to describe data as it
// is relayed or requested between peers.
type InvVect struct {
	Type InvType
	Hash [32]byte
}
