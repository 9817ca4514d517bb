package group

import (
	"math/big"

	"github.com/kysee/anon-ownership/utils"
)

// MerkleProof proves that Leaf is in the tree with Root. Levels where the
// node had no sibling are skipped; bit i of Index is set when the node was the
// right child at the i-th included level.
type MerkleProof struct {
	Root     *big.Int
	Leaf     *big.Int
	Index    uint64
	Siblings []*big.Int
}

func (g *Group) GenerateMerkleProof(index int) (*MerkleProof, error) {
	if err := g.checkIndex(index); err != nil {
		return nil, err
	}

	var (
		siblings []*big.Int
		path     uint64
		bit      uint
	)
	pos := index
	for level := 0; level < g.Depth(); level++ {
		isRight := pos&1 == 1
		sibling := pos + 1
		if isRight {
			sibling = pos - 1
		}
		if sibling < len(g.nodes[level]) {
			if isRight {
				path |= 1 << bit
			}
			siblings = append(siblings, new(big.Int).Set(g.nodes[level][sibling]))
			bit++
		}
		pos >>= 1
	}

	return &MerkleProof{
		Root:     g.Root(),
		Leaf:     new(big.Int).Set(g.nodes[0][index]),
		Index:    path,
		Siblings: siblings,
	}, nil
}

// GenerateMemberProof looks the member up and proves it.
func (g *Group) GenerateMemberProof(member *big.Int) (*MerkleProof, error) {
	idx := g.IndexOf(member)
	if idx < 0 {
		return nil, ErrMemberNotFound
	}
	return g.GenerateMerkleProof(idx)
}

func VerifyMerkleProof(p *MerkleProof) bool {
	if p == nil || p.Root == nil || p.Leaf == nil {
		return false
	}
	node := p.Leaf
	for i, s := range p.Siblings {
		var err error
		if (p.Index>>uint(i))&1 == 1 {
			node, err = utils.PoseidonHash(s, node)
		} else {
			node, err = utils.PoseidonHash(node, s)
		}
		if err != nil {
			return false
		}
	}
	return node.Cmp(p.Root) == 0
}
