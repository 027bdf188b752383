// Load balancing strategies, consolidated from loadbalance/*.go (three
// separate balancer types in the teacher) behind one Balancer
// interface, per service instances returned from a Registry.
package discovery

import (
	"fmt"
	"hash/crc32"
	"math/rand"
	"sort"
	"sync/atomic"
)

// Balancer picks one instance from a list on every call; implementations
// must be goroutine-safe since Pick is called concurrently per request.
type Balancer interface {
	Pick(instances []Instance) (*Instance, error)
	Name() string
}

// RoundRobin cycles through instances in order using a lock-free
// atomic counter. Best for stateless, equal-capacity instances.
type RoundRobin struct {
	counter int64
}

func (b *RoundRobin) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("discovery: no instances available")
	}
	idx := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[idx], nil
}

func (b *RoundRobin) Name() string { return "round-robin" }

// WeightedRandom picks probabilistically in proportion to each
// instance's Weight. Best for heterogeneous instance capacity.
type WeightedRandom struct{}

func (b *WeightedRandom) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("discovery: no instances available")
	}
	total := 0
	for _, inst := range instances {
		total += inst.Weight
	}
	if total <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}
	r := rand.Intn(total)
	for i := range instances {
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandom) Name() string { return "weighted-random" }

// ConsistentHash maps string keys onto a hash ring of instances, so
// the same key always routes to the same instance until the ring
// membership changes — cache affinity for stateful services. It picks
// by an explicit key rather than satisfying Balancer directly, since
// consistent hashing is inherently key-based, not call-based.
type ConsistentHash struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]*Instance
}

// NewConsistentHash builds an empty ring with 100 virtual nodes per
// added instance, enough to keep load statistically even.
func NewConsistentHash() *ConsistentHash {
	return &ConsistentHash{
		replicas: 100,
		nodes:    make(map[uint32]*Instance),
	}
}

// Add places an instance onto the ring.
func (b *ConsistentHash) Add(instance *Instance) {
	for i := 0; i < b.replicas; i++ {
		h := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, h)
		b.nodes[h] = instance
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// PickKey finds the instance owning the given key's position on the
// ring, wrapping around to the first node past the largest hash.
func (b *ConsistentHash) PickKey(key string) (*Instance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("discovery: consistent hash ring is empty")
	}
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHash) Name() string { return "consistent-hash" }
