package engine

import (
	"reflect"
	"testing"
)

func TestDiffGroups(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		prev map[string][]string
		cur  map[string][]string
		want map[string][]string
	}{
		{
			name: "additions in existing and new groups",
			prev: map[string][]string{"A": {"1", "2"}},
			cur:  map[string][]string{"A": {"1", "2", "3"}, "B": {"9"}},
			want: map[string][]string{"A": {"3"}, "B": {"9"}},
		},
		{
			name: "identical snapshots",
			prev: map[string][]string{"A": {"1", "2"}},
			cur:  map[string][]string{"A": {"2", "1"}},
			want: map[string][]string{},
		},
		{
			name: "removals are not signals",
			prev: map[string][]string{"A": {"1", "2"}, "B": {"9"}},
			cur:  map[string][]string{"A": {"1"}},
			want: map[string][]string{},
		},
		{
			name: "duplicate ids counted once",
			prev: map[string][]string{"A": {"1"}},
			cur:  map[string][]string{"A": {"1", "2", "2"}},
			want: map[string][]string{"A": {"2"}},
		},
		{
			name: "empty previous snapshot",
			prev: map[string][]string{},
			cur:  map[string][]string{"A": {"1"}},
			want: map[string][]string{"A": {"1"}},
		},
		{
			name: "added ids come back sorted",
			prev: map[string][]string{"A": nil},
			cur:  map[string][]string{"A": {"c", "a", "b"}},
			want: map[string][]string{"A": {"a", "b", "c"}},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := diffGroups(tc.prev, tc.cur)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("diffGroups(%v, %v) = %v, want %v", tc.prev, tc.cur, got, tc.want)
			}
		})
	}
}
