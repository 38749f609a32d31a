package pics

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/GoAethereal/sunspec/sunspec"
)

// Element and attribute names of the SDX telemetry dialect:
// sunSpecData > d(lid,man,mod,sn,t,...) > m(id[,x]) > p(id[,sf,t]).
const (
	SDXRootElement   = "sunSpecData"
	SDXDeviceElement = "d"
	SDXModelElement  = "m"
	SDXPointElement  = "p"
)

type sdxDocXML struct {
	XMLName xml.Name       `xml:"sunSpecData"`
	Version string         `xml:"v,attr,omitempty"`
	Devices []sdxDeviceXML `xml:"d"`
}

type sdxDeviceXML struct {
	LoggerID string        `xml:"lid,attr,omitempty"`
	Man      string        `xml:"man,attr,omitempty"`
	Mod      string        `xml:"mod,attr,omitempty"`
	SN       string        `xml:"sn,attr,omitempty"`
	Time     string        `xml:"t,attr,omitempty"`
	Models   []sdxModelXML `xml:"m"`
}

type sdxModelXML struct {
	ID     string        `xml:"id,attr"`
	Index  string        `xml:"x,attr,omitempty"`
	Points []sdxPointXML `xml:"p"`
}

type sdxPointXML struct {
	ID    string `xml:"id,attr"`
	SF    string `xml:"sf,attr,omitempty"`
	Time  string `xml:"t,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Record is one telemetry emission for a single device: its identity and
// a snapshot of the point values to log. Writers populate it from
// a read sunspec.Device; it does not carry a registry dependency because,
// unlike PICS, an SDX record is write-only telemetry — nothing parses it
// back into a live device tree.
type Record struct {
	LoggerID string
	Man      string
	Mod      string
	SN       string
	Time     time.Time
	Models   []ModelRecord
}

// ModelRecord logs a subset of one model instance's current point values.
type ModelRecord struct {
	ModelID int
	Index   int // 0 omits the x= attribute (single-instance model)
	Points  []PointRecord
}

// PointRecord is one logged point: its cooked value and, when bound, the
// scale-factor exponent that produced it.
type PointRecord struct {
	ID    string
	Value interface{}
	SF    *int64
}

// NewRecord builds a Record from a device's currently-read point values.
// Only implemented points are included; callers choose which models and
// points to log by filtering modelIDs (nil logs every discovered model).
func NewRecord(dev *sunspec.Device, man, mod, sn string, at time.Time, modelIDs ...int) Record {
	want := map[int]bool{}
	for _, id := range modelIDs {
		want[id] = true
	}

	rec := Record{Man: man, Mod: mod, SN: sn, Time: at}
	for _, m := range dev.ModelsList {
		if len(want) > 0 && !want[m.ID] {
			continue
		}
		mr := ModelRecord{ModelID: m.ID}
		if m.Index > 1 {
			mr.Index = m.Index
		}
		for _, p := range m.PointsList {
			v, ok := p.Value()
			if !ok {
				continue
			}
			mr.Points = append(mr.Points, PointRecord{ID: p.PointType.ID, Value: v, SF: p.ValueSF})
		}
		if len(mr.Points) > 0 {
			rec.Models = append(rec.Models, mr)
		}
	}
	return rec
}

// WriteSDX serializes one or more Records as a single SDX document.
func WriteSDX(w io.Writer, recs ...Record) error {
	doc := sdxDocXML{Version: Version}
	for _, rec := range recs {
		dx := sdxDeviceXML{Man: rec.Man, Mod: rec.Mod, SN: rec.SN}
		if !rec.Time.IsZero() {
			dx.Time = rec.Time.UTC().Format("2006-01-02T15:04:05Z")
		}
		if rec.LoggerID != "" {
			dx.LoggerID = rec.LoggerID
		}
		for _, mr := range rec.Models {
			mx := sdxModelXML{ID: strconv.Itoa(mr.ModelID)}
			if mr.Index > 0 {
				mx.Index = strconv.Itoa(mr.Index)
			}
			for _, pr := range mr.Points {
				px := sdxPointXML{ID: pr.ID, Value: fmt.Sprint(pr.Value)}
				if pr.SF != nil {
					px.SF = strconv.FormatInt(*pr.SF, 10)
				}
				mx.Points = append(mx.Points, px)
			}
			dx.Models = append(dx.Models, mx)
		}
		doc.Devices = append(doc.Devices, dx)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}
