package csvfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

func TestReadWithHeader(t *testing.T) {
	in := "x,y,name\n0,0,a\n0, 1, b\n# comment\n1,1\n1,zero,c\n2,NaN,d\n1,0,\"e\"\n"
	r := Reader{Header: true}
	cs, err := r.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, opt.Cities{
		{Name: "a", X: 0, Y: 0},
		{Name: "b", X: 0, Y: 1},
		{Name: "e", X: 1, Y: 0},
	}, cs)
	require.Len(t, r.Rejected(), 3)
	require.Equal(t, "csv", r.Name())
}

func TestReadWithoutHeader(t *testing.T) {
	var r Reader
	cs, err := r.Read(strings.NewReader("3,4,a\n5,6,b\n"))
	require.NoError(t, err)
	require.Len(t, cs, 2)
	require.Equal(t, 5.0, opt.Distance(opt.City{}, cs[0]))
}

func TestReadSkipsBrokenQuotes(t *testing.T) {
	var r Reader
	cs, err := r.Read(strings.NewReader("1,2,\"bad\"x\n3,4,ok\n"))
	require.NoError(t, err)
	require.Equal(t, opt.Cities{{Name: "ok", X: 3, Y: 4}}, cs)
	require.Len(t, r.Rejected(), 1)
}
