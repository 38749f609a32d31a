package pics_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/GoAethereal/cancel"
	"github.com/GoAethereal/sunspec/modbus"
	"github.com/GoAethereal/sunspec/pics"
	"github.com/GoAethereal/sunspec/smdx"
	"github.com/GoAethereal/sunspec/sunspec"
)

const commonModelSMDX = `<sunSpecModels><model id="1" len="65">
  <block type="fixed" len="65">
    <point id="Mn" offset="0" type="string" len="16" mandatory="M" access="R"/>
    <point id="Md" offset="16" type="string" len="16" mandatory="M" access="R"/>
    <point id="Opt" offset="32" type="string" len="8" access="R"/>
    <point id="Vr" offset="40" type="string" len="8" access="R"/>
    <point id="SN" offset="48" type="string" len="16" mandatory="M" access="R"/>
    <point id="DA" offset="64" type="uint16" mandatory="M" access="RW"/>
  </block>
</model></sunSpecModels>`

const commonModelMap = `<mbmap addr="40000" func="holding">
  <regs offset="0" len="2" type="string">SunS</regs>
  <regs offset="2" len="1" type="u16">1</regs>
  <regs offset="3" len="1" type="u16">65</regs>
  <regs offset="4" len="16" type="string">SunSpecTest</regs>
  <regs offset="20" len="16" type="string">TestDevice-1</regs>
  <regs offset="36" len="8" type="string">opt_a_b_c</regs>
  <regs offset="44" len="8" type="string">1.2.3</regs>
  <regs offset="52" len="16" type="string">sn-123456789</regs>
  <regs offset="68" len="1" type="u16">3</regs>
  <regs offset="69" len="1" type="u16">65535</regs>
</mbmap>`

func scannedCommonDevice(t *testing.T) *sunspec.Device {
	t.Helper()
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

	dev := sunspec.NewDevice(sunspec.HoldingIO{Transport: transport}, reg)
	ctx := cancel.New()
	if err := dev.Scan(ctx, sunspec.ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := dev.ModelsList[0].ReadPoints(ctx); err != nil {
		t.Fatal(err)
	}
	return dev
}

func TestPICSRoundTripCommonModel(t *testing.T) {
	dev := scannedCommonDevice(t)

	var buf bytes.Buffer
	if err := pics.Save(&buf, dev, false); err != nil {
		t.Fatal(err)
	}

	reg := smdx.NewRegistry(nil)
	mt, err := smdx.Parse([]byte(commonModelSMDX))
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(mt)

	loaded, err := pics.Load(&buf, nil, reg)
	if err != nil {
		t.Fatal(err)
	}

	if diff := dev.Diff(loaded); diff != "" {
		t.Fatalf("round trip not equal: %s", diff)
	}
}

const model63001SMDX = `<sunSpecModels><model id="63001" len="2">
  <block type="fixed" len="2">
    <point id="int16_4" offset="0" type="int16" access="RW" sf="sunssf_4"/>
    <point id="sunssf_4" offset="1" type="sunssf" access="R"/>
  </block>
</model></sunSpecModels>`

const model63001Map = `<mbmap addr="40000">
  <regs offset="0" len="2" type="string">SunS</regs>
  <regs offset="2" len="1" type="u16">63001</regs>
  <regs offset="3" len="1" type="u16">2</regs>
  <regs offset="4" len="1" type="s16">-2</regs>
  <regs offset="5" len="1" type="s16">1</regs>
  <regs offset="6" len="1" type="u16">65535</regs>
</mbmap>`

func TestPICSRoundTripScaleFactor(t *testing.T) {
	transport, err := modbus.LoadMap(strings.NewReader(model63001Map))
	if err != nil {
		t.Fatal(err)
	}
	reg := smdx.NewRegistry(nil)
	mt, err := smdx.Parse([]byte(model63001SMDX))
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(mt)

	dev := sunspec.NewDevice(sunspec.HoldingIO{Transport: transport}, reg)
	ctx := cancel.New()
	if err := dev.Scan(ctx, sunspec.ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := dev.ModelsList[0].ReadPoints(ctx); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := pics.Save(&buf, dev, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `id="int16_4"`) {
		t.Fatalf("expected int16_4 point in snapshot:\n%s", buf.String())
	}

	reg2 := smdx.NewRegistry(nil)
	reg2.Put(mt)
	loaded, err := pics.Load(&buf, nil, reg2)
	if err != nil {
		t.Fatal(err)
	}

	if diff := dev.Diff(loaded); diff != "" {
		t.Fatalf("round trip not equal: %s", diff)
	}
	p := loaded.ModelsList[0].Points["int16_4"]
	v, ok := p.Value()
	if !ok || v.(float64) != -20 {
		t.Fatalf("value = %v, want -20", v)
	}
}

func TestPICSUnimplementedPointRoundTrips(t *testing.T) {
	dev := scannedCommonDevice(t)
	// Opt was decoded from the map but force it unimplemented to exercise
	// the impl="false" branch on both sides of the round trip.
	dev.ModelsList[0].Points["Opt"].Impl = false
	dev.ModelsList[0].Points["Opt"].ValueBase = nil

	var buf bytes.Buffer
	if err := pics.Save(&buf, dev, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `impl="false"`) {
		t.Fatalf("expected an impl=false point in snapshot:\n%s", buf.String())
	}

	reg := smdx.NewRegistry(nil)
	mt, _ := smdx.Parse([]byte(commonModelSMDX))
	reg.Put(mt)
	loaded, err := pics.Load(&buf, nil, reg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := dev.Diff(loaded); diff != "" {
		t.Fatalf("round trip not equal: %s", diff)
	}
	if loaded.ModelsList[0].Points["Opt"].Impl {
		t.Fatal("expected Opt to remain unimplemented after round trip")
	}
}
