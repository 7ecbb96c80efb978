package scoring

import "testing"

func uhdAndX265Instance() Instance {
	return Instance{
		CustomFormats: []CustomFormat{
			{
				Name:  "UHD",
				Score: 100,
				Specifications: []Specification{
					{Implementation: "ResolutionSpec", Required: true, Value: "2160"},
				},
			},
			{
				Name:  "x265",
				Score: -50,
				Specifications: []Specification{
					{Implementation: "ReleaseTitleSpec", Required: true, Negate: true, Value: "x265"},
				},
			},
		},
	}
}

// TestScoreRelease_S4 is the literal §8 S4 scenario.
func TestScoreRelease_S4(t *testing.T) {
	instance := uhdAndX265Instance()

	score, breakdown := ScoreRelease("Foo.2160p.x265.mkv", instance)
	if score != 50 {
		t.Fatalf("score = %d, want 50", score)
	}
	if breakdown != "UHD +100, x265 -50" {
		t.Fatalf("breakdown = %q, want %q", breakdown, "UHD +100, x265 -50")
	}

	score, breakdown = ScoreRelease("Foo.2160p.x264.mkv", instance)
	if score != 100 {
		t.Fatalf("score = %d, want 100", score)
	}
	if breakdown != "UHD +100" {
		t.Fatalf("breakdown = %q, want %q", breakdown, "UHD +100")
	}
}

func TestScoreRelease_EmptyBreakdownIsDash(t *testing.T) {
	score, breakdown := ScoreRelease("Nothing.Matches.mkv", uhdAndX265Instance())
	if score != 0 || breakdown != "-" {
		t.Fatalf("got (%d, %q), want (0, \"-\")", score, breakdown)
	}
}

func TestScoreRelease_OrderIndependent(t *testing.T) {
	instance := uhdAndX265Instance()
	reversed := Instance{CustomFormats: []CustomFormat{instance.CustomFormats[1], instance.CustomFormats[0]}}

	title := "Foo.2160p.x265.mkv"
	score1, _ := ScoreRelease(title, instance)
	score2, _ := ScoreRelease(title, reversed)
	if score1 != score2 {
		t.Fatalf("reordering custom formats changed total score: %d vs %d", score1, score2)
	}
}

func TestMatchesTier(t *testing.T) {
	cases := []struct {
		tier, title string
		want        bool
	}{
		{"WEB-1080p", "Some.Movie.1080p.WEB-DL.mkv", true},
		{"WEB-1080p", "Some.Movie.720p.WEB-DL.mkv", false},
		{"Bluray-2160p", "Some.Movie.2160p.BluRay.mkv", true},
		{"DVD", "Some.Movie.DVDSCR.avi", false},
		{"Unknown", "Anything At All", true},
	}
	for _, c := range cases {
		if got := matchesTier(c.tier, c.title); got != c.want {
			t.Fatalf("matchesTier(%q, %q) = %v, want %v", c.tier, c.title, got, c.want)
		}
	}
}

func TestBestResultMatchingProfile_S5Shape(t *testing.T) {
	profile := Profile{
		Tiers: []QualityTier{{Name: "Unknown", Enabled: true}},
		MinCustomFormatScore: 50,
	}
	instance := Instance{
		CustomFormats: []CustomFormat{
			{Name: "A", Score: 80, Specifications: []Specification{{Implementation: "ReleaseTitleSpec", Required: true, Value: "ProperRelease"}}},
		},
	}
	candidates := []Candidate{{Title: "ProperRelease.mkv"}, {Title: "OtherRelease.mkv"}}

	best, ok := BestResultMatchingProfile(candidates, profile, instance)
	if !ok {
		t.Fatal("expected a surviving candidate")
	}
	if best.Candidate.Title != "ProperRelease.mkv" || best.Score != 80 {
		t.Fatalf("best = %+v, want ProperRelease.mkv scoring 80", best)
	}
}

func TestBestResultMatchingProfile_NoSurvivors(t *testing.T) {
	profile := Profile{Tiers: []QualityTier{{Name: "Bluray-2160p", Enabled: true}}}
	_, ok := BestResultMatchingProfile([]Candidate{{Title: "random.webdl.mkv"}}, profile, Instance{})
	if ok {
		t.Fatal("expected no survivor when no candidate matches the enabled tier")
	}
}
