package triangle

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dougneedham/lossdev/internal/model"
)

var testLayouts = []string{"2006-01-02", "1/2/2006"}

func paidRecord(fileYear int, lossDate, amount string) model.Record {
	return model.Record{
		FileYear: fileYear,
		LossDate: lossDate,
		Values:   map[string]decimal.Decimal{"paid": decimal.RequireFromString(amount)},
		Source:   "fy_loss_run.csv",
		Row:      1,
	}
}

func equalTriangles(a, b *model.Triangle) bool {
	ao, bo := a.Origins(), b.Origins()
	am, bm := a.Maturities(), b.Maturities()
	if len(ao) != len(bo) || len(am) != len(bm) {
		return false
	}
	for i := range ao {
		if ao[i] != bo[i] {
			return false
		}
	}
	for i := range am {
		if am[i] != bm[i] {
			return false
		}
	}
	for _, o := range ao {
		for _, m := range am {
			av, aok := a.At(o, m)
			bv, bok := b.At(o, m)
			if aok != bok {
				return false
			}
			if aok && !av.Equal(bv) {
				return false
			}
		}
	}
	return true
}

func TestDerive_OriginAndMaturity(t *testing.T) {
	pt, err := Derive(paidRecord(2013, "2012-06-01", "100"), testLayouts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pt.Origin != 2012 {
		t.Errorf("expected origin 2012, got %d", pt.Origin)
	}
	if pt.Maturity != 12 {
		t.Errorf("expected maturity 12, got %d", pt.Maturity)
	}
}

func TestDerive_SameYearEvaluation(t *testing.T) {
	pt, err := Derive(paidRecord(2013, "2013-11-30", "50"), testLayouts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pt.Maturity != 0 {
		t.Errorf("expected maturity 0, got %d", pt.Maturity)
	}
}

func TestDerive_LayoutFallback(t *testing.T) {
	for _, date := range []string{"6/1/2012", "06/01/2012"} {
		pt, err := Derive(paidRecord(2013, date, "100"), testLayouts)
		if err != nil {
			t.Fatalf("expected %q to parse, got %v", date, err)
		}
		if pt.Origin != 2012 {
			t.Errorf("expected origin 2012 for %q, got %d", date, pt.Origin)
		}
	}
}

func TestDerive_DateParseError(t *testing.T) {
	_, err := Derive(paidRecord(2013, "June 1st 2012", "100"), testLayouts)
	if err == nil {
		t.Fatal("expected error for unparseable date")
	}

	var parseErr *model.DateParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected DateParseError, got %T", err)
	}
	if parseErr.Value != "June 1st 2012" {
		t.Errorf("expected raw value in error, got %q", parseErr.Value)
	}
	if parseErr.Source != "fy_loss_run.csv" || parseErr.Row != 1 {
		t.Errorf("expected provenance fy_loss_run.csv row 1, got %s row %d", parseErr.Source, parseErr.Row)
	}
}

func TestDerive_ImpossibleDate(t *testing.T) {
	if _, err := Derive(paidRecord(2013, "06/31/2012", "100"), testLayouts); err == nil {
		t.Fatal("expected error for June 31st")
	}
}

func TestDerive_EmptyDate(t *testing.T) {
	_, err := Derive(paidRecord(2013, "   ", "100"), testLayouts)
	if err == nil {
		t.Fatal("expected error for empty date")
	}

	var missing *model.MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnError, got %T", err)
	}
	if missing.Column != "loss_date" {
		t.Errorf("expected loss_date column in error, got %q", missing.Column)
	}
}

func TestBuilder_DevelopmentAcrossEvaluations(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2012-06-01", "100"),
		paidRecord(2014, "2012-06-01", "150"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	origins := tri.Origins()
	if len(origins) != 1 || origins[0] != 2012 {
		t.Fatalf("expected origins [2012], got %v", origins)
	}
	maturities := tri.Maturities()
	if len(maturities) != 2 || maturities[0] != 12 || maturities[1] != 24 {
		t.Fatalf("expected maturities [12 24], got %v", maturities)
	}

	if v, ok := tri.At(2012, 12); !ok || !v.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected cell (2012, 12) = 100, got %s (defined=%v)", v, ok)
	}
	if v, ok := tri.At(2012, 24); !ok || !v.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected cell (2012, 24) = 150, got %s (defined=%v)", v, ok)
	}
}

func TestBuilder_SumsDuplicateCells(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2013-02-01", "50"),
		paidRecord(2013, "2013-08-15", "70"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	v, ok := tri.At(2013, 0)
	if !ok {
		t.Fatal("expected cell (2013, 0) to be defined")
	}
	if !v.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected summed cell 120, got %s", v)
	}
}

func TestBuilder_EmptyInput(t *testing.T) {
	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(nil, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !tri.Empty() {
		t.Errorf("expected empty axes, got origins %v maturities %v", tri.Origins(), tri.Maturities())
	}
	if tri.Cells() != 0 {
		t.Errorf("expected no cells, got %d", tri.Cells())
	}
}

func TestBuilder_OrderIndependence(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2012-06-01", "100"),
		paidRecord(2014, "2012-06-01", "150"),
		paidRecord(2013, "2013-02-01", "50"),
		paidRecord(2014, "2013-07-04", "75.25"),
		paidRecord(2015, "2012-12-31", "10"),
	}
	reversed := make([]model.Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	builder := NewBuilder(testLayouts, model.PolicyInclude)
	a, err := builder.Build(records, "paid")
	if err != nil {
		t.Fatalf("build forward: %v", err)
	}
	b, err := builder.Build(reversed, "paid")
	if err != nil {
		t.Fatalf("build reversed: %v", err)
	}

	if !equalTriangles(a, b) {
		t.Error("expected identical triangles regardless of record order")
	}
}

func TestBuilder_ConservesTotal(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2012-06-01", "100.10"),
		paidRecord(2014, "2012-06-01", "0.90"),
		paidRecord(2013, "2013-02-01", "-50"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := decimal.RequireFromString("51.00")
	if got := tri.Total(); !got.Equal(want) {
		t.Errorf("expected total %s, got %s", want, got)
	}
}

func TestBuilder_MissingVersusZero(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2013-02-01", "50"),
		paidRecord(2013, "2013-08-15", "-50"),
		paidRecord(2014, "2013-08-15", "25"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	v, ok := tri.At(2013, 0)
	if !ok {
		t.Fatal("expected cell (2013, 0) to be defined")
	}
	if !v.IsZero() {
		t.Errorf("expected contributions summing to zero to stay defined, got %s", v)
	}
	if _, ok := tri.At(2014, 0); ok {
		t.Error("expected cell (2014, 0) to be missing, no record contributed")
	}
}

func TestBuilder_DateErrorAbortsBuild(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2012-06-01", "100"),
		paidRecord(2013, "sometime in March", "50"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err == nil {
		t.Fatal("expected build to abort on unparseable date")
	}
	if tri != nil {
		t.Error("expected no partial triangle")
	}

	var parseErr *model.DateParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected DateParseError, got %T", err)
	}
}

func TestBuilder_MissingMetricAborts(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2012-06-01", "100"),
		{
			FileYear: 2013,
			LossDate: "2012-07-01",
			Values:   map[string]decimal.Decimal{"incurred": decimal.NewFromInt(10)},
			Source:   "fy_loss_run.csv",
			Row:      2,
		},
	}

	_, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err == nil {
		t.Fatal("expected build to abort on record without the metric")
	}

	var missing *model.MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnError, got %T", err)
	}
	if missing.Column != "paid" || missing.Row != 2 {
		t.Errorf("expected paid column at row 2, got %q row %d", missing.Column, missing.Row)
	}
}

func TestBuilder_NegativeMaturityIncluded(t *testing.T) {
	records := []model.Record{
		paidRecord(2012, "2013-03-01", "40"), // evaluated before its own origin
		paidRecord(2014, "2013-03-01", "60"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	maturities := tri.Maturities()
	if len(maturities) != 2 || maturities[0] != -12 || maturities[1] != 12 {
		t.Fatalf("expected maturities [-12 12], got %v", maturities)
	}
	if v, ok := tri.At(2013, -12); !ok || !v.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected cell (2013, -12) = 40, got %s (defined=%v)", v, ok)
	}
	if !tri.Total().Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100, got %s", tri.Total())
	}
}

func TestBuilder_NegativeMaturityExcluded(t *testing.T) {
	records := []model.Record{
		paidRecord(2012, "2013-03-01", "40"),
		paidRecord(2014, "2013-03-01", "60"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyExclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	maturities := tri.Maturities()
	if len(maturities) != 1 || maturities[0] != 12 {
		t.Fatalf("expected maturities [12], got %v", maturities)
	}
	if _, ok := tri.At(2013, -12); ok {
		t.Error("expected no cell for the excluded record")
	}
	if !tri.Total().Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected total 60 without the excluded record, got %s", tri.Total())
	}
}

func TestBuilder_ExcludedOriginStillARow(t *testing.T) {
	records := []model.Record{
		paidRecord(2012, "2013-03-01", "40"), // only record for origin 2013, excluded
		paidRecord(2013, "2012-06-01", "100"),
	}

	tri, err := NewBuilder(testLayouts, model.PolicyExclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	origins := tri.Origins()
	if len(origins) != 2 || origins[0] != 2012 || origins[1] != 2013 {
		t.Fatalf("expected origins [2012 2013], got %v", origins)
	}
	if _, _, ok := tri.Latest(2013); ok {
		t.Error("expected origin 2013 to be an all-missing row")
	}
}

func TestBuilder_SparseOriginKeepsFullRow(t *testing.T) {
	records := []model.Record{
		paidRecord(2013, "2012-06-01", "100"),
		paidRecord(2014, "2012-06-01", "150"),
		paidRecord(2013, "2013-02-01", "50"), // origin 2013 only at maturity 0
	}

	tri, err := NewBuilder(testLayouts, model.PolicyInclude).Build(records, "paid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	maturities := tri.Maturities()
	if len(maturities) != 3 {
		t.Fatalf("expected maturities [0 12 24], got %v", maturities)
	}
	if _, ok := tri.At(2013, 0); !ok {
		t.Error("expected cell (2013, 0) to be defined")
	}
	if _, ok := tri.At(2013, 12); ok {
		t.Error("expected cell (2013, 12) to be missing")
	}
	if _, ok := tri.At(2013, 24); ok {
		t.Error("expected cell (2013, 24) to be missing")
	}
}
