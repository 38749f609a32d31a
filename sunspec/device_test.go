package sunspec

import (
	"strings"
	"testing"

	"github.com/GoAethereal/cancel"
	"github.com/GoAethereal/sunspec/modbus"
	"github.com/GoAethereal/sunspec/smdx"
)

// TestDiffTwoScansOfIdenticalMapsAreEqual builds two devices over two
// mapped transports loaded from the same map document, scans and reads
// both, and checks they compare equal.
func TestDiffTwoScansOfIdenticalMapsAreEqual(t *testing.T) {
	a := newCommonModelDevice(t)
	b := newCommonModelDevice(t)

	ctx := cancel.New()
	if err := a.Scan(ctx, ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := b.Scan(ctx, ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := a.ModelsList[0].ReadPoints(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.ModelsList[0].ReadPoints(ctx); err != nil {
		t.Fatal(err)
	}

	if diff := a.Diff(b); diff != "" {
		t.Fatalf("expected equal devices, got diff: %s", diff)
	}
}

func TestDiffDetectsValueMismatch(t *testing.T) {
	a := newCommonModelDevice(t)
	b := newCommonModelDevice(t)
	ctx := cancel.New()
	if err := a.Scan(ctx, ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := b.Scan(ctx, ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := a.ModelsList[0].ReadPoints(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.ModelsList[0].ReadPoints(ctx); err != nil {
		t.Fatal(err)
	}
	b.ModelsList[0].Points["DA"].ValueBase = int64(99)

	if diff := a.Diff(b); diff == "" {
		t.Fatal("expected a diff for the mismatched DA point")
	}
}

func TestClientDeviceModelsNamedDefaultsToModelID(t *testing.T) {
	transport, err := modbus.LoadMap(strings.NewReader(commonModelMap))
	if err != nil {
		t.Fatal(err)
	}
	reg := smdx.NewRegistry(nil)
	mt, err := smdx.Parse([]byte(commonModelSMDX))
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(mt)

	cd := NewClientDevice(HoldingIO{Transport: transport}, reg)
	if err := cd.Scan(cancel.New(), ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	m := cd.ModelNamed("model_1")
	if m == nil {
		t.Fatal("expected model_1 to be indexed (schema declares no explicit name)")
	}
	if m.ID != 1 {
		t.Fatalf("id = %d, want 1", m.ID)
	}
}

func TestClientDeviceModelsNamedUsesDeclaredName(t *testing.T) {
	namedSMDX := `<sunSpecModels><model id="1" name="common" len="65">
  <block type="fixed" len="65">
    <point id="Mn" offset="0" type="string" len="16" mandatory="M" access="R"/>
    <point id="Md" offset="16" type="string" len="16" mandatory="M" access="R"/>
    <point id="Opt" offset="32" type="string" len="8" access="R"/>
    <point id="Vr" offset="40" type="string" len="8" access="R"/>
    <point id="SN" offset="48" type="string" len="16" mandatory="M" access="R"/>
    <point id="DA" offset="64" type="uint16" mandatory="M" access="R"/>
  </block>
</model></sunSpecModels>`

	transport, err := modbus.LoadMap(strings.NewReader(commonModelMap))
	if err != nil {
		t.Fatal(err)
	}
	reg := smdx.NewRegistry(nil)
	mt, err := smdx.Parse([]byte(namedSMDX))
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(mt)

	cd := NewClientDevice(HoldingIO{Transport: transport}, reg)
	if err := cd.Scan(cancel.New(), ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	m := cd.ModelNamed("common")
	if m == nil {
		t.Fatal("expected the model's declared name \"common\" to be indexed")
	}
	if m.ID != 1 {
		t.Fatalf("id = %d, want 1", m.ID)
	}
	if cd.ModelNamed("model_1") != nil {
		t.Fatal("expected no fallback model_1 entry once a declared name is present")
	}
}
