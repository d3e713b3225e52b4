package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/AlFontal/jpinfect/internal/fetch"
	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/table"
	"github.com/AlFontal/jpinfect/internal/urlrule"
)

// fakeFetcher serves canned bodies by URL substring.
type fakeFetcher struct {
	bodies map[string][]byte
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	for frag, body := range f.bodies {
		if strings.Contains(url, frag) {
			return body, nil
		}
	}
	return nil, &fetch.TransportError{URL: url, Status: 404}
}

const bulletinBody = `w,,,,
t,,,,
,,,,
,"コレラ
Cholera",,...4,
,Current week,Cumulative,,
北海道 (Hokkaido),2,5,,
`

const sentinelBody = `IDWR,,
,"4th week, 2024",,
,Influenza,
Prefecture,Current week,per sentinel
Hokkaido,120,5.29
`

func TestImportWeeklyUnits(t *testing.T) {
	f := &fakeFetcher{bodies: map[string][]byte{
		"zensu04":     []byte(bulletinBody),
		"teitenrui04": []byte(sentinelBody),
	}}
	c := NewCoordinator(urlrule.NewEngine(), f, 2, table.DeltaSigned)

	res, err := c.Run(context.Background(), Options{
		Kinds: []model.DatasetKind{model.KindBullet, model.KindSentinel},
		Years: []int{2024},
		Weeks: []int{4},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.AllCase) != 1 {
		t.Fatalf("all-case rows = %d, want 1: %+v", len(res.AllCase), res.AllCase)
	}
	if res.AllCase[0].Disease != "Cholera" || res.AllCase[0].Week != 4 {
		t.Errorf("all-case row = %+v", res.AllCase[0])
	}
	if len(res.Sentinel) != 1 || res.Sentinel[0].Disease != "Influenza" {
		t.Fatalf("sentinel rows = %+v", res.Sentinel)
	}
	if len(res.Reports) != 2 {
		t.Errorf("reports = %d, want 2", len(res.Reports))
	}
	if res.JobID == "" {
		t.Error("job id must be assigned")
	}

	unified, err := c.BuildUnified(res)
	if err != nil {
		t.Fatalf("BuildUnified: %v", err)
	}
	if len(unified.Rows) != 2 {
		t.Errorf("unified rows = %d, want 2", len(unified.Rows))
	}
}

func TestImportTransportErrorFailsJob(t *testing.T) {
	c := NewCoordinator(urlrule.NewEngine(), &fakeFetcher{}, 1, table.DeltaSigned)
	_, err := c.Run(context.Background(), Options{
		Kinds: []model.DatasetKind{model.KindBullet},
		Years: []int{2024},
		Weeks: []int{1},
	})
	if err == nil {
		t.Fatal("expected transport failure to fail the job")
	}
}

func TestImportNoRuleForExplicitYear(t *testing.T) {
	c := NewCoordinator(urlrule.NewEngine(), &fakeFetcher{}, 1, table.DeltaSigned)
	_, err := c.Run(context.Background(), Options{
		Kinds: []model.DatasetKind{model.KindSex},
		Years: []int{1990},
	})
	if err == nil {
		t.Fatal("expected configuration error for a year before the archive")
	}
}

func TestUnitNames(t *testing.T) {
	weekly := Unit{Kind: model.KindSentinel, Year: 2024, Week: 4}
	if got := weekly.name(); got != "2024-04-sentinel.csv" {
		t.Errorf("weekly name = %q", got)
	}
	yearly := Unit{Kind: model.KindSex, Year: 2005}
	if got := yearly.name(); got != "2005-sex" {
		t.Errorf("yearly name = %q", got)
	}
}

func TestUnitsDefaultRange(t *testing.T) {
	c := NewCoordinator(urlrule.NewEngine(), &fakeFetcher{}, 1, table.DeltaSigned)
	units, err := c.units(Options{Kinds: []model.DatasetKind{model.KindSex}})
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if len(units) == 0 {
		t.Fatal("no units for default sex range")
	}
	first, last := units[0], units[len(units)-1]
	if first.Year != 1999 {
		t.Errorf("first year = %d, want 1999", first.Year)
	}
	if last.Year != 2023 {
		t.Errorf("last year = %d, want 2023", last.Year)
	}
	for _, u := range units {
		if u.URL == "" {
			t.Fatalf("unit %s has no URL", u.name())
		}
	}
}

func TestRunSkipsUndecodableWorkbook(t *testing.T) {
	// A body excelize cannot open is a fault of that file; the unit is
	// recorded skipped and the run carries on.
	f := &fakeFetcher{bodies: map[string][]byte{
		"2014": []byte("not a zip archive"),
	}}
	c := NewCoordinator(urlrule.NewEngine(), f, 1, table.DeltaSigned)
	res, err := c.Run(context.Background(), Options{
		Kinds: []model.DatasetKind{model.KindSex},
		Years: []int{2014},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "2014-sex" {
		t.Errorf("skipped = %v, want [2014-sex]", res.Skipped)
	}
	if len(res.Historical) != 0 {
		t.Errorf("no rows expected, got %d", len(res.Historical))
	}
}

func TestRunSkipsLegacyXlsEpochsWithoutFetching(t *testing.T) {
	// 1999-2013 resolve to BIFF .xls files no decoder reads; they are
	// reported skipped without spending a download on them.
	f := &fakeFetcher{}
	c := NewCoordinator(urlrule.NewEngine(), f, 1, table.DeltaSigned)
	res, err := c.Run(context.Background(), Options{
		Kinds: []model.DatasetKind{model.KindSex},
		Years: []int{2012},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "2012-sex" {
		t.Errorf("skipped = %v, want [2012-sex]", res.Skipped)
	}
	if len(f.calls) != 0 {
		t.Errorf("fetched %v, want no downloads", f.calls)
	}
}

func TestRunPropagatesParserSkips(t *testing.T) {
	// A CSV with no recoverable header must skip the unit, not fail the job.
	f := &fakeFetcher{bodies: map[string][]byte{
		"zensu04": []byte("a,b\nc,d\ne,f\ng,h\ni,j\nk,l\n"),
	}}
	c := NewCoordinator(urlrule.NewEngine(), f, 1, table.DeltaSigned)
	res, err := c.Run(context.Background(), Options{
		Kinds: []model.DatasetKind{model.KindBullet},
		Years: []int{2024},
		Weeks: []int{4},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Skipped) != 1 {
		t.Errorf("skipped = %v, want one unit", res.Skipped)
	}
	if len(res.AllCase) != 0 {
		t.Errorf("no rows expected, got %d", len(res.AllCase))
	}
}
