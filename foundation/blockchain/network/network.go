// Package network simulates a set of peers, each holding its own replica of
// the ledger, and the fork-choice rule that brings them back into agreement.
// Message delivery between peers is in-process, instantaneous and reliable.
package network

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/chain"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/peer"
)

// ErrPeerNotFound is returned by the context aware operations when the peer
// id is unknown.
var ErrPeerNotFound = errors.New("peer not found")

// EventHandler defines a function that is called when events occur in the
// processing of the network.
type EventHandler func(v string, args ...any)

// Info is a point in time view of a peer and its replica.
type Info struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Address string        `json:"address"`
	Chain   []block.Block `json:"chain"`
}

// ConsensusResult reports the outcome of a consensus round.
type ConsensusResult struct {
	WinnerID     string   `json:"winner_id"`
	ValidPeers   []string `json:"valid_peers"`
	InvalidPeers []string `json:"invalid_peers"`
}

// Network owns the peers and the genesis block every replica starts from.
type Network struct {
	mu         sync.RWMutex
	difficulty uint
	genesis    block.Block
	peers      *peer.Set
	evHandler  EventHandler
}

// WithEvHandler provides a handler that receives events about the network
// and every replica it owns.
func WithEvHandler(ev EventHandler) func(n *Network) {
	return func(n *Network) {
		if ev != nil {
			n.evHandler = ev
		}
	}
}

// New constructs a network at the specified difficulty and mines the shared
// genesis block.
func New(difficulty uint, options ...func(n *Network)) (*Network, error) {
	n := Network{
		difficulty: difficulty,
		peers:      peer.NewSet(),
		evHandler:  func(string, ...any) {},
	}
	for _, option := range options {
		option(&n)
	}

	gen, err := block.Genesis(difficulty)
	if err != nil {
		return nil, err
	}
	n.genesis = gen

	n.evHandler("network: New: difficulty[%d]: genesis[%s]", difficulty, gen.Hash)

	return &n, nil
}

// Difficulty returns the difficulty every replica is constructed with.
func (n *Network) Difficulty() uint {
	return n.difficulty
}

// Genesis returns the block every replica starts from.
func (n *Network) Genesis() block.Block {
	return n.genesis
}

// =============================================================================

// AddPeer creates a peer whose replica holds only the shared genesis block
// and returns its id.
func (n *Network) AddPeer(name string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	c, err := chain.New(n.difficulty, &n.genesis, chain.WithEvHandler(chain.EventHandler(n.evHandler)))
	if err != nil {
		return "", err
	}

	p, err := peer.New(name, c)
	if err != nil {
		return "", err
	}

	n.peers.Add(p)
	n.evHandler("network: AddPeer: id[%s]: name[%s]: address[%s]", p.ID, name, p.Address())

	return p.ID, nil
}

// RemovePeer removes the peer from the network. Unknown ids are ignored.
func (n *Network) RemovePeer(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.peers.Remove(id) {
		n.evHandler("network: RemovePeer: id[%s]", id)
	}
}

// Peers returns a view of every peer in the order they joined.
func (n *Network) Peers() []Info {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := n.peers.Copy("")
	infos := make([]Info, len(peers))
	for i, p := range peers {
		infos[i] = toInfo(p)
	}

	return infos
}

// Peer returns a view of the specified peer.
func (n *Network) Peer(id string) (Info, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, exists := n.peers.Get(id)
	if !exists {
		return Info{}, false
	}

	return toInfo(p), true
}

// Statuses returns a signed status for every peer in the order they joined.
func (n *Network) Statuses() []peer.Status {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := n.peers.Copy("")
	sts := make([]peer.Status, len(peers))
	for i, p := range peers {
		sts[i] = p.Status()
	}

	return sts
}

// Chain returns the replica owned by the specified peer.
func (n *Network) Chain(id string) (*chain.Chain, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, exists := n.peers.Get(id)
	if !exists {
		return nil, false
	}

	return p.Chain, true
}

// =============================================================================

// BroadcastBlock delivers the block to every peer except the source. Peers
// whose tip doesn't match the block are left unsynchronized.
func (n *Network) BroadcastBlock(sourceID string, b block.Block) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	n.broadcast(sourceID, b)
}

// MineBlock has the specified peer mine a new block on its own replica
// without telling anyone else about it.
func (n *Network) MineBlock(peerID string, data string) (block.Block, bool) {
	b, err := n.MineBlockContext(context.Background(), peerID, data)
	if err != nil {
		return block.Block{}, false
	}

	return b, true
}

// MineBlockContext has the specified peer mine a new block on its own
// replica. The mining operation can be cancelled or bounded with options.
func (n *Network) MineBlockContext(ctx context.Context, peerID string, data string, options ...block.MineOption) (block.Block, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, exists := n.peers.Get(peerID)
	if !exists {
		return block.Block{}, ErrPeerNotFound
	}

	return p.Chain.AddBlockContext(ctx, data, options...)
}

// DeliverBlock hands a block to a single peer. Unknown ids are ignored. It
// reports whether the peer accepted the block.
func (n *Network) DeliverBlock(peerID string, b block.Block) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, exists := n.peers.Get(peerID)
	if !exists {
		return false
	}

	return p.Chain.ReceiveBlock(b)
}

// MineAndBroadcast has the specified peer mine a new block and broadcast it
// to every other peer. It reports false if the peer is unknown.
func (n *Network) MineAndBroadcast(peerID string, data string) bool {
	_, err := n.MineAndBroadcastContext(context.Background(), peerID, data)
	return err == nil
}

// MineAndBroadcastContext has the specified peer mine a new block and
// broadcast it to every other peer. Nothing is broadcast if mining fails.
func (n *Network) MineAndBroadcastContext(ctx context.Context, peerID string, data string, options ...block.MineOption) (block.Block, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, exists := n.peers.Get(peerID)
	if !exists {
		return block.Block{}, ErrPeerNotFound
	}

	b, err := p.Chain.AddBlockContext(ctx, data, options...)
	if err != nil {
		return block.Block{}, err
	}

	n.broadcast(peerID, b)

	return b, nil
}

// TamperBlock edits the data of a block on the specified peer's replica
// without mining it. Unknown ids and positions are ignored.
func (n *Network) TamperBlock(peerID string, position int, data string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, exists := n.peers.Get(peerID)
	if !exists {
		return false
	}

	return p.Chain.EditBlockData(position, data)
}

// =============================================================================

// RunConsensus partitions the peers into valid and invalid replicas, picks
// the longest valid replica as the winner and asks every other peer to
// replace its chain with the winner's. The first peer to join wins a tie.
// When no replica is valid the winner is empty, every peer is reported
// invalid and nothing changes.
func (n *Network) RunConsensus() ConsensusResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	peers := n.peers.Copy("")

	res := ConsensusResult{
		ValidPeers:   []string{},
		InvalidPeers: []string{},
	}

	var winner *peer.Peer
	var winnerLen int
	for _, p := range peers {
		if !p.Chain.IsValid() {
			res.InvalidPeers = append(res.InvalidPeers, p.ID)
			continue
		}

		res.ValidPeers = append(res.ValidPeers, p.ID)
		if l := p.Chain.Len(); winner == nil || l > winnerLen {
			winner = p
			winnerLen = l
		}
	}

	if winner == nil {
		n.evHandler("network: RunConsensus: NO VALID PEERS: invalid[%d]", len(res.InvalidPeers))
		return res
	}

	res.WinnerID = winner.ID
	blocks := winner.Chain.Blocks()

	for _, p := range peers {
		if p.ID != winner.ID {
			p.Chain.ReplaceChain(blocks)
		}
	}

	n.evHandler("network: RunConsensus: winner[%s]: length[%d]: valid[%d]: invalid[%d]", winner.Name, winnerLen, len(res.ValidPeers), len(res.InvalidPeers))

	return res
}

// =============================================================================

// broadcast delivers the block to every peer but the source. The caller must
// hold the lock.
func (n *Network) broadcast(sourceID string, b block.Block) {
	for _, p := range n.peers.Copy(sourceID) {
		p.Chain.ReceiveBlock(b)
	}
}

func toInfo(p *peer.Peer) Info {
	return Info{
		ID:      p.ID,
		Name:    p.Name,
		Address: p.Address(),
		Chain:   p.Chain.Blocks(),
	}
}
