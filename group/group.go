package group

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/kysee/anon-ownership/utils"
)

var (
	ErrInvalidMember  = errors.New("member must be a non-zero field element")
	ErrMemberExists   = errors.New("member already exists")
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberRemoved  = errors.New("member has been removed")
)

// Group mirrors a Semaphore group: a lean incremental Merkle tree whose
// parents are Poseidon(left, right). A node without a right sibling moves up
// unchanged, so the depth is ceil(log2(size)) and a one-member group has the
// member as its root.
type Group struct {
	// nodes[0] are the leaves, nodes[Depth()] holds the root
	nodes [][]*big.Int
}

func New(members ...*big.Int) (*Group, error) {
	g := &Group{nodes: [][]*big.Int{{}}}
	if err := g.AddMembers(members...); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) Size() int {
	return len(g.nodes[0])
}

func (g *Group) Depth() int {
	return len(g.nodes) - 1
}

// Root returns nil for an empty group.
func (g *Group) Root() *big.Int {
	top := g.nodes[g.Depth()]
	if len(top) == 0 {
		return nil
	}
	return new(big.Int).Set(top[0])
}

func (g *Group) Members() []*big.Int {
	ret := make([]*big.Int, len(g.nodes[0]))
	for i, m := range g.nodes[0] {
		ret[i] = new(big.Int).Set(m)
	}
	return ret
}

func (g *Group) IndexOf(member *big.Int) int {
	for i, m := range g.nodes[0] {
		if m.Cmp(member) == 0 {
			return i
		}
	}
	return -1
}

func (g *Group) AddMembers(members ...*big.Int) error {
	for _, m := range members {
		if err := g.AddMember(m); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) AddMember(member *big.Int) error {
	if !utils.InField(member) || member.Sign() == 0 {
		return ErrInvalidMember
	}
	if g.IndexOf(member) >= 0 {
		return fmt.Errorf("%w: %s", ErrMemberExists, member)
	}
	return g.insert(member)
}

// FromLeaves rebuilds a group from its leaf list as kept on chain, where a
// zero leaf is a removed member.
func FromLeaves(leaves []*big.Int) (*Group, error) {
	g, err := New()
	if err != nil {
		return nil, err
	}
	for i, leaf := range leaves {
		if leaf == nil || leaf.Sign() == 0 {
			if err := g.insert(new(big.Int)); err != nil {
				return nil, err
			}
			continue
		}
		if err := g.AddMember(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
	}
	return g, nil
}

func (g *Group) insert(member *big.Int) error {
	index := g.Size()
	if 1<<g.Depth() < index+1 {
		g.nodes = append(g.nodes, nil)
	}
	depth := g.Depth()

	node := new(big.Int).Set(member)
	for level := 0; level < depth; level++ {
		pos := index >> level
		g.setNode(level, pos, node)
		if pos&1 == 1 {
			h, err := utils.PoseidonHash(g.nodes[level][pos-1], node)
			if err != nil {
				return err
			}
			node = h
		}
	}
	g.nodes[depth] = []*big.Int{node}
	return nil
}

func (g *Group) UpdateMember(index int, member *big.Int) error {
	if !utils.InField(member) || member.Sign() == 0 {
		return ErrInvalidMember
	}
	if err := g.checkIndex(index); err != nil {
		return err
	}
	if g.nodes[0][index].Sign() == 0 {
		return ErrMemberRemoved
	}
	return g.update(index, member)
}

// RemoveMember zeroes the leaf; the index stays taken.
func (g *Group) RemoveMember(index int) error {
	if err := g.checkIndex(index); err != nil {
		return err
	}
	if g.nodes[0][index].Sign() == 0 {
		return ErrMemberRemoved
	}
	return g.update(index, new(big.Int))
}

func (g *Group) update(index int, leaf *big.Int) error {
	depth := g.Depth()
	node := new(big.Int).Set(leaf)
	for level := 0; level < depth; level++ {
		pos := index >> level
		g.nodes[level][pos] = node
		var err error
		if pos&1 == 1 {
			node, err = utils.PoseidonHash(g.nodes[level][pos-1], node)
		} else if pos+1 < len(g.nodes[level]) {
			node, err = utils.PoseidonHash(node, g.nodes[level][pos+1])
		}
		if err != nil {
			return err
		}
	}
	g.nodes[depth] = []*big.Int{node}
	return nil
}

func (g *Group) setNode(level, pos int, node *big.Int) {
	if pos == len(g.nodes[level]) {
		g.nodes[level] = append(g.nodes[level], node)
		return
	}
	g.nodes[level][pos] = node
}

func (g *Group) checkIndex(index int) error {
	if index < 0 || index >= g.Size() {
		return fmt.Errorf("%w: index %d out of range [0, %d)", ErrMemberNotFound, index, g.Size())
	}
	return nil
}
