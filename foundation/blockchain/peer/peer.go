// Package peer maintains the peer related information such as the set
// of known peers and their status.
package peer

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/chain"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/signature"
	"github.com/google/uuid"
)

// Peer represents a participant in the network that owns a single replica
// of the ledger.
type Peer struct {
	ID         string
	Name       string
	Chain      *chain.Chain
	privateKey *ecdsa.PrivateKey
}

// New contructs a new peer with a fresh id and identity key that owns the
// specified chain.
func New(name string, c *chain.Chain) (*Peer, error) {
	privateKey, err := signature.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	p := Peer{
		ID:         uuid.NewString(),
		Name:       name,
		Chain:      c,
		privateKey: privateKey,
	}

	return &p, nil
}

// Address returns the account address derived from the peer's identity key.
func (p *Peer) Address() string {
	return signature.Address(p.privateKey)
}

// Status returns a signed snapshot of the peer's replica.
func (p *Peer) Status() Status {
	tip := p.Chain.LatestBlock()

	st := Status{
		ID:                p.ID,
		Name:              p.Name,
		Address:           p.Address(),
		Length:            p.Chain.Len(),
		LatestBlockHash:   tip.Hash,
		LatestBlockNumber: tip.Index,
		Valid:             p.Chain.IsValid(),
	}

	// A signing failure leaves the status unsigned.
	if sig, err := signature.Sign(st.signedFields(), p.privateKey); err == nil {
		st.Signature = sig
	}

	return st
}

// =============================================================================

// Status represents information about the status of any given peer.
type Status struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	Length            int    `json:"length"`
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	Valid             bool   `json:"valid"`
	Signature         string `json:"signature,omitempty"`
}

// Verify checks the status was signed by the address it reports.
func (st Status) Verify() error {
	return signature.Verify(st.signedFields(), st.Signature, st.Address)
}

// signedFields returns the status without its signature.
func (st Status) signedFields() Status {
	st.Signature = ""
	return st
}

// =============================================================================

// Set represents the data representation to maintain a set of known peers.
// Peers are kept in the order they were added.
type Set struct {
	mu    sync.RWMutex
	order []string
	set   map[string]*Peer
}

// NewSet constructs a new set to manage peer information.
func NewSet() *Set {
	return &Set{
		set: make(map[string]*Peer),
	}
}

// Add adds a new peer to the set. It reports false if a peer with the same
// id already exists.
func (s *Set) Add(p *Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.set[p.ID]; exists {
		return false
	}

	s.set[p.ID] = p
	s.order = append(s.order, p.ID)

	return true
}

// Remove removes a peer from the set. It reports false if the peer is
// unknown.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.set[id]; !exists {
		return false
	}

	delete(s.set, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return true
}

// Get returns the peer for the specified id.
func (s *Set) Get(id string) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.set[id]
	return p, exists
}

// Len returns the number of known peers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Copy returns the known peers in insertion order, excluding the peer with
// the specified id.
func (s *Set) Copy(excludeID string) []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]*Peer, 0, len(s.order))
	for _, id := range s.order {
		if id != excludeID {
			peers = append(peers, s.set[id])
		}
	}

	return peers
}
