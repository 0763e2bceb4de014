package flash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/psdb/pdberr"
)

func TestMergeDVs(t *testing.T) {
	cases := []struct {
		name    string
		lhs     DV
		rhs     DV
		want    DV
		wantErr bool
	}{
		{
			name: "disjoint appends in order",
			lhs:  DV{{Addr: 0, Data: []byte("AB")}},
			rhs:  DV{{Addr: 10, Data: []byte("CD")}},
			want: DV{{Addr: 0, Data: []byte("AB")}, {Addr: 10, Data: []byte("CD")}},
		},
		{
			name:    "rhs overlapping lhs is rejected",
			lhs:     DV{{Addr: 5, Data: []byte("12345")}},
			rhs:     DV{{Addr: 7, Data: []byte("XY")}},
			wantErr: true,
		},
		{
			name: "rhs overlapping an earlier rhs ALP is rejected",
			lhs:  DV{{Addr: 0, Data: []byte("A")}},
			rhs: DV{
				{Addr: 10, Data: []byte("BB")},
				{Addr: 11, Data: []byte("C")},
			},
			wantErr: true,
		},
		{
			name: "empty rhs returns lhs unchanged",
			lhs:  DV{{Addr: 0, Data: []byte("A")}},
			rhs:  nil,
			want: DV{{Addr: 0, Data: []byte("A")}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := MergeDVs(c.lhs, c.rhs)
			if c.wantErr {
				require.Error(t, err)
				assert.True(t, pdberr.Is(err, pdberr.KindDVOverlap))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}
