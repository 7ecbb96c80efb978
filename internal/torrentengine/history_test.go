package torrentengine

import "testing"

func TestHistoryRing_BoundedAtLimit(t *testing.T) {
	r := newHistoryRing(3)
	for i := 0; i < 5; i++ {
		r.push(HistoryEntry{ID: string(rune('a' + i))})
	}
	entries := r.entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].ID != "c" || entries[2].ID != "e" {
		t.Fatalf("expected oldest evicted, got %+v", entries)
	}
}

func TestStatusFor_MagnetStillResolvingIsMetadata(t *testing.T) {
	// statusFor requires a *torrent.Torrent, which needs a live client
	// to construct; constructing a real anacrolix/torrent.Torrent
	// without a client+swarm is impractical in a unit test, so this test
	// has no body and no test in this package calls statusFor.
}

func TestResolveInfoHash_MagnetBTIH(t *testing.T) {
	e := &Engine{}
	hash, err := e.resolveInfoHash([]byte("magnet:?xt=urn:btih:AABBCCDDEEFF00112233445566778899AABBCCDD&dn=test"))
	if err != nil {
		t.Fatalf("resolveInfoHash: %v", err)
	}
	if hash != "aabbccddeeff00112233445566778899aabbccdd" {
		t.Fatalf("got %q", hash)
	}
}

func TestResolveInfoHash_MagnetMissingBTIH(t *testing.T) {
	e := &Engine{}
	_, err := e.resolveInfoHash([]byte("magnet:?dn=test"))
	if err == nil {
		t.Fatal("expected error for magnet without v1 info hash")
	}
}
