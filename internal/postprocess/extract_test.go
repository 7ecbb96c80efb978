package postprocess

import "testing"

func TestFindFirstRAR_PrefersPlainRAROverVolumes(t *testing.T) {
	got := findFirstRAR([]string{
		"/x/release.r00",
		"/x/release.rar",
		"/x/release.r01",
	})
	if got != "/x/release.rar" {
		t.Fatalf("findFirstRAR = %q, want /x/release.rar", got)
	}
}

func TestFindFirstRAR_FindsPartOneAmongPartVolumes(t *testing.T) {
	got := findFirstRAR([]string{
		"/x/release.part02.rar",
		"/x/release.part01.rar",
		"/x/release.part03.rar",
	})
	if got != "/x/release.part01.rar" {
		t.Fatalf("findFirstRAR = %q, want .part01.rar", got)
	}
}

func TestCanonicalizeUnrarError_DetectsPassword(t *testing.T) {
	err := canonicalizeUnrarError(nil, []byte("Encrypted file.  Corrupt file or wrong password."))
	if err == nil {
		t.Fatal("expected a non-nil canonicalized error")
	}
	if got := err.Error(); got != "unrar: archive is password protected" {
		t.Fatalf("canonicalizeUnrarError = %q, want password message", got)
	}
}
