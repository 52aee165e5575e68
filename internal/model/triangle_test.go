package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewTriangle_SortsAndUnionsAxes(t *testing.T) {
	cells := map[Cell]decimal.Decimal{
		{Origin: 2014, Maturity: 12}: decimal.NewFromInt(5),
	}
	tri := NewTriangle("paid", []int{2016, 2012}, nil, cells)

	origins := tri.Origins()
	if len(origins) != 3 || origins[0] != 2012 || origins[1] != 2014 || origins[2] != 2016 {
		t.Fatalf("expected origins [2012 2014 2016], got %v", origins)
	}
	maturities := tri.Maturities()
	if len(maturities) != 1 || maturities[0] != 12 {
		t.Fatalf("expected maturities [12], got %v", maturities)
	}
}

func TestTriangle_MissingVersusZero(t *testing.T) {
	cells := map[Cell]decimal.Decimal{
		{Origin: 2013, Maturity: 0}: decimal.Zero,
	}
	tri := NewTriangle("paid", nil, []int{0, 12}, cells)

	v, ok := tri.At(2013, 0)
	if !ok {
		t.Fatal("expected cell (2013, 0) to be defined")
	}
	if !v.IsZero() {
		t.Errorf("expected zero value, got %s", v)
	}
	if _, ok := tri.At(2013, 12); ok {
		t.Error("expected cell (2013, 12) to be missing")
	}
}

func TestTriangle_Total(t *testing.T) {
	cells := map[Cell]decimal.Decimal{
		{Origin: 2012, Maturity: 12}: decimal.NewFromInt(100),
		{Origin: 2012, Maturity: 24}: decimal.NewFromInt(150),
		{Origin: 2013, Maturity: 12}: decimal.RequireFromString("0.25"),
	}
	tri := NewTriangle("paid", nil, nil, cells)

	want := decimal.RequireFromString("250.25")
	if got := tri.Total(); !got.Equal(want) {
		t.Errorf("expected total %s, got %s", want, got)
	}
}

func TestTriangle_Latest(t *testing.T) {
	cells := map[Cell]decimal.Decimal{
		{Origin: 2012, Maturity: 12}: decimal.NewFromInt(100),
		{Origin: 2012, Maturity: 24}: decimal.NewFromInt(150),
	}
	tri := NewTriangle("paid", []int{2011}, nil, cells)

	maturity, v, ok := tri.Latest(2012)
	if !ok {
		t.Fatal("expected a latest cell for 2012")
	}
	if maturity != 24 || !v.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected (24, 150), got (%d, %s)", maturity, v)
	}
	if _, _, ok := tri.Latest(2011); ok {
		t.Error("expected no latest cell for the all-missing origin 2011")
	}
}

func TestTriangle_JSONRoundTrip(t *testing.T) {
	cells := map[Cell]decimal.Decimal{
		{Origin: 2012, Maturity: 12}: decimal.NewFromInt(100),
		{Origin: 2012, Maturity: 24}: decimal.NewFromInt(150),
		{Origin: 2013, Maturity: 12}: decimal.Zero,
	}
	tri := NewTriangle("paid", []int{2011}, nil, cells)

	data, err := json.Marshal(tri)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire struct {
		Metric string                       `json:"metric"`
		Cells  map[string]map[string]string `json:"cells"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if wire.Metric != "paid" {
		t.Errorf("expected metric paid, got %q", wire.Metric)
	}
	if wire.Cells["2012"]["12"] != "100" {
		t.Errorf("expected cell 2012/12 = \"100\", got %q", wire.Cells["2012"]["12"])
	}
	if _, ok := wire.Cells["2011"]; ok {
		t.Error("expected no cells entry for the all-missing origin 2011")
	}

	var back Triangle
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal triangle: %v", err)
	}
	origins := back.Origins()
	if len(origins) != 3 || origins[0] != 2011 {
		t.Fatalf("expected origins [2011 2012 2013] after round trip, got %v", origins)
	}
	if v, ok := back.At(2012, 24); !ok || !v.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected cell (2012, 24) = 150 after round trip, got %s (defined=%v)", v, ok)
	}
	if v, ok := back.At(2013, 12); !ok || !v.IsZero() {
		t.Errorf("expected defined zero at (2013, 12) after round trip, got %s (defined=%v)", v, ok)
	}
	if _, ok := back.At(2011, 12); ok {
		t.Error("expected (2011, 12) to stay missing after round trip")
	}
	if !back.Total().Equal(tri.Total()) {
		t.Errorf("expected total %s after round trip, got %s", tri.Total(), back.Total())
	}
}

func TestTriangle_EmptyMarshalsToArrays(t *testing.T) {
	tri := NewTriangle("paid", nil, nil, nil)
	if !tri.Empty() {
		t.Fatal("expected empty triangle")
	}

	data, err := json.Marshal(tri)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"metric":"paid","origins":[],"maturities":[],"cells":{}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}
