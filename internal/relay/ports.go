package relay

import (
	"github.com/google/btree"
)

const freeListDegree = 8

// offsetSpace 是单个地址的偏移量空间：[0, next) 中除 free 外的偏移量都已占用。
type offsetSpace struct {
	next int
	free *btree.BTreeG[int]
}

func newOffsetSpace() *offsetSpace {
	return &offsetSpace{free: btree.NewG(freeListDegree, btree.Less[int]())}
}

func (s *offsetSpace) held(offset int) bool {
	return offset >= 0 && offset < s.next && !s.free.Has(offset)
}

func (s *offsetSpace) acquire() int {
	if offset, ok := s.free.DeleteMin(); ok {
		return offset
	}
	offset := s.next
	s.next++
	return offset
}

func (s *offsetSpace) release(offset int) {
	if !s.held(offset) {
		return
	}
	if offset != s.next-1 {
		s.free.ReplaceOrInsert(offset)
		return
	}
	// 释放最高位时收缩高水位，顺带回收紧邻的空闲偏移量。
	s.next--
	for {
		top, ok := s.free.Max()
		if !ok || top != s.next-1 {
			return
		}
		s.free.DeleteMax()
		s.next--
	}
}

func (s *offsetSpace) inUse() int {
	return s.next - s.free.Len()
}

// PortAllocator 按网络地址分配端口偏移量，总是返回当前最小的空闲偏移量。
// 非并发安全，由 Core 加锁访问。
type PortAllocator struct {
	basePort int
	spaces   map[string]*offsetSpace
}

func NewPortAllocator(basePort int) *PortAllocator {
	return &PortAllocator{
		basePort: basePort,
		spaces:   make(map[string]*offsetSpace),
	}
}

func (p *PortAllocator) BasePort() int {
	return p.basePort
}

// Acquire 为 address 分配最小的空闲偏移量。
func (p *PortAllocator) Acquire(address string) int {
	space, ok := p.spaces[address]
	if !ok {
		space = newOffsetSpace()
		p.spaces[address] = space
	}
	return space.acquire()
}

// Release 归还偏移量；未占用的偏移量被忽略。
func (p *PortAllocator) Release(address string, offset int) {
	space, ok := p.spaces[address]
	if !ok {
		return
	}
	space.release(offset)
	if space.next == 0 {
		delete(p.spaces, address)
	}
}

// Held 判断偏移量当前是否被占用。
func (p *PortAllocator) Held(address string, offset int) bool {
	space, ok := p.spaces[address]
	return ok && space.held(offset)
}

// InUse 返回 address 当前占用的偏移量个数。
func (p *PortAllocator) InUse(address string) int {
	space, ok := p.spaces[address]
	if !ok {
		return 0
	}
	return space.inUse()
}

// Port 将偏移量换算为端口号。
func (p *PortAllocator) Port(offset int) int {
	return p.basePort + offset
}
