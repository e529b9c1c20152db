package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type address struct {
	Street string
	Tags   []string
}

type customer struct {
	Name    string
	Address *address
	Scores  map[string]int
}

type counter struct {
	n      int
	copies *int
}

func (c counter) Clone() counter {
	*c.copies++
	return counter{n: c.n, copies: c.copies}
}

func TestClone_DeepCopiesStructs(t *testing.T) {
	t.Parallel()

	in := &customer{
		Name:    "Ada",
		Address: &address{Street: "Main", Tags: []string{"home"}},
		Scores:  map[string]int{"a": 1},
	}
	out, err := Clone(in)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.NotSame(t, in, out)

	in.Address.Tags[0] = "work"
	in.Scores["a"] = 2
	require.Equal(t, "home", out.Address.Tags[0])
	require.Equal(t, 1, out.Scores["a"])
}

func TestClone_ScalarsAndInterfaces(t *testing.T) {
	t.Parallel()

	n, err := Clone(42)
	require.NoError(t, err)
	require.Equal(t, 42, n)

	var boxed any = []string{"x", "y"}
	cp, err := Clone(boxed)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, cp)
}

func TestClone_NilPassesThrough(t *testing.T) {
	t.Parallel()

	var c *customer
	out, err := Clone(c)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestClone_PrefersCloner(t *testing.T) {
	t.Parallel()

	copies := 0
	out, err := Clone(counter{n: 7, copies: &copies})
	require.NoError(t, err)
	require.Equal(t, 7, out.n)
	require.Equal(t, 1, copies)
}

func TestClone_UnencodableValue(t *testing.T) {
	t.Parallel()

	_, err := Clone(struct{ hidden int }{hidden: 1})
	require.Error(t, err)
}
