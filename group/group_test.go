package group

import (
	"math/big"
	"testing"

	"github.com/kysee/anon-ownership/utils"
	"github.com/stretchr/testify/require"
)

func members(n int) []*big.Int {
	ret := make([]*big.Int, n)
	for i := range ret {
		ret[i] = big.NewInt(int64(i + 1))
	}
	return ret
}

func hash(t *testing.T, a, b *big.Int) *big.Int {
	h, err := utils.PoseidonHash(a, b)
	require.NoError(t, err)
	return h
}

func TestSingleMember(t *testing.T) {
	m := big.NewInt(42)
	g, err := New(m)
	require.NoError(t, err)
	require.Equal(t, 1, g.Size())
	require.Equal(t, 0, g.Depth())
	require.Equal(t, m, g.Root())

	p, err := g.GenerateMerkleProof(0)
	require.NoError(t, err)
	require.Empty(t, p.Siblings)
	require.Equal(t, uint64(0), p.Index)
	require.True(t, VerifyMerkleProof(p))
}

func TestEmptyGroup(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	require.Nil(t, g.Root())
	_, err = g.GenerateMerkleProof(0)
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRootCarriesLonelyNodes(t *testing.T) {
	m := members(3)
	g, err := New(m...)
	require.NoError(t, err)
	require.Equal(t, 2, g.Depth())

	// the third leaf has no sibling and moves up unchanged
	expected := hash(t, hash(t, m[0], m[1]), m[2])
	require.Equal(t, expected, g.Root())

	require.NoError(t, g.AddMember(big.NewInt(4)))
	expected = hash(t, hash(t, m[0], m[1]), hash(t, m[2], big.NewInt(4)))
	require.Equal(t, expected, g.Root())
	require.Equal(t, 2, g.Depth())

	require.NoError(t, g.AddMember(big.NewInt(5)))
	require.Equal(t, 3, g.Depth())
	require.Equal(t, hash(t, expected, big.NewInt(5)), g.Root())
}

func TestMerkleProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		g, err := New(members(n)...)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			p, err := g.GenerateMerkleProof(i)
			require.NoError(t, err)
			require.Equal(t, g.Root(), p.Root)
			require.True(t, VerifyMerkleProof(p), "n=%d i=%d", n, i)
			require.LessOrEqual(t, len(p.Siblings), g.Depth())
		}
	}

	// the last leaf of five only has the level-2 sibling
	g, err := New(members(5)...)
	require.NoError(t, err)
	p, err := g.GenerateMerkleProof(4)
	require.NoError(t, err)
	require.Len(t, p.Siblings, 1)
	require.Equal(t, uint64(1), p.Index)

	p.Leaf = big.NewInt(99)
	require.False(t, VerifyMerkleProof(p))
}

func TestGenerateMemberProof(t *testing.T) {
	g, err := New(members(4)...)
	require.NoError(t, err)

	p, err := g.GenerateMemberProof(big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3), p.Leaf)
	require.Equal(t, uint64(2), p.Index)
	require.True(t, VerifyMerkleProof(p))

	_, err = g.GenerateMemberProof(big.NewInt(100))
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestUpdateAndRemove(t *testing.T) {
	g, err := New(members(5)...)
	require.NoError(t, err)

	require.NoError(t, g.UpdateMember(1, big.NewInt(20)))
	rebuilt, err := New(big.NewInt(1), big.NewInt(20), big.NewInt(3), big.NewInt(4), big.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, rebuilt.Root(), g.Root())

	require.NoError(t, g.RemoveMember(4))
	require.Equal(t, 5, g.Size())
	require.Equal(t, big.NewInt(0), g.Members()[4])
	require.ErrorIs(t, g.RemoveMember(4), ErrMemberRemoved)
	require.ErrorIs(t, g.UpdateMember(4, big.NewInt(7)), ErrMemberRemoved)

	for i := 0; i < 4; i++ {
		p, err := g.GenerateMerkleProof(i)
		require.NoError(t, err)
		require.True(t, VerifyMerkleProof(p))
	}

	require.ErrorIs(t, g.UpdateMember(9, big.NewInt(7)), ErrMemberNotFound)
}

func TestInvalidMembers(t *testing.T) {
	g, err := New(big.NewInt(1))
	require.NoError(t, err)

	require.ErrorIs(t, g.AddMember(big.NewInt(0)), ErrInvalidMember)
	require.ErrorIs(t, g.AddMember(new(big.Int).Set(utils.FieldModulus)), ErrInvalidMember)
	require.ErrorIs(t, g.AddMember(big.NewInt(1)), ErrMemberExists)
	require.Equal(t, 1, g.Size())

	_, err = New(big.NewInt(2), big.NewInt(2))
	require.ErrorIs(t, err, ErrMemberExists)
}

func TestFromLeaves(t *testing.T) {
	g, err := New(members(5)...)
	require.NoError(t, err)
	require.NoError(t, g.RemoveMember(1))
	require.NoError(t, g.UpdateMember(3, big.NewInt(40)))

	rebuilt, err := FromLeaves(g.Members())
	require.NoError(t, err)
	require.Equal(t, g.Root(), rebuilt.Root())
	require.Equal(t, g.Size(), rebuilt.Size())

	p, err := rebuilt.GenerateMemberProof(big.NewInt(40))
	require.NoError(t, err)
	require.True(t, VerifyMerkleProof(p))

	_, err = FromLeaves([]*big.Int{big.NewInt(1), big.NewInt(1)})
	require.ErrorIs(t, err, ErrMemberExists)
}
