package postprocess

import "testing"

func TestPickMainPar2_PrefersShortestName(t *testing.T) {
	got := pickMainPar2([]string{
		"/x/release.vol03+07.par2",
		"/x/release.par2",
		"/x/release.vol00+03.par2",
	})
	if got != "/x/release.par2" {
		t.Fatalf("pickMainPar2 = %q, want /x/release.par2", got)
	}
}
