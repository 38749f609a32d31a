package sunspec

import (
	"encoding/binary"
	"time"

	"github.com/GoAethereal/cancel"
)

var sunSSignature = [4]byte{'S', 'u', 'n', 'S'}

// ScanOptions configures a Device.Scan call.
type ScanOptions struct {
	// Progress is invoked before loading each discovered model id;
	// returning false aborts the scan with ScanAborted.
	Progress func(modelID int) bool
	// Delay, if nonzero, paces the bus between reads for fragile devices.
	Delay time.Duration
}

// Scan performs base-address discovery followed by the model chain walk:
// it probes Candidates (defaulting to {40000, 0, 50000}) for the "SunS"
// signature, then reads {id, len} pairs until the 0xFFFF end sentinel,
// instantiating and loading a Model for each.
func (d *Device) Scan(ctx cancel.Context, opts ScanOptions) error {
	candidates := d.Candidates
	if len(candidates) == 0 {
		candidates = defaultBaseAddrCandidates
	}

	var firstErr error
	var sig []byte
	if d.BaseAddr == nil {
		for _, addr := range candidates {
			data, err := d.IO.Read(ctx, addr, 3)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if len(data) >= 4 && data[0] == sunSSignature[0] && data[1] == sunSSignature[1] &&
				data[2] == sunSSignature[2] && data[3] == sunSSignature[3] {
				base := addr
				d.BaseAddr = &base
				sig = data
				break
			}
			if firstErr == nil {
				firstErr = &NotFound{Reason: "device responded - not a SunSpec register map"}
			}
			if opts.Delay > 0 {
				time.Sleep(opts.Delay)
			}
		}
	}

	if d.BaseAddr == nil {
		if firstErr == nil {
			firstErr = &NotFound{Reason: "no candidate base address responded"}
		}
		return firstErr
	}

	if sig == nil {
		data, err := d.IO.Read(ctx, *d.BaseAddr, 3)
		if err != nil {
			return err
		}
		sig = data
	}

	modelID := int(binary.BigEndian.Uint16(sig[4:6]))
	addr := *d.BaseAddr + 2

	for modelID != endModelID {
		lenData, err := d.IO.Read(ctx, addr+1, 1)
		if err != nil || len(lenData) != 2 {
			break
		}
		if opts.Progress != nil {
			if !opts.Progress(modelID) {
				return &ScanAborted{Reason: "progress callback returned false"}
			}
		}
		modelLen := binary.BigEndian.Uint16(lenData)

		model := newModel(d, modelID, addr+2, modelLen)
		if err := model.Load(d.Registry); err != nil {
			model.LoadErr = err
		}
		d.AddModel(model)

		addr += modelLen + 2

		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}

		idData, err := d.IO.Read(ctx, addr, 1)
		if err != nil || len(idData) != 2 {
			break
		}
		modelID = int(binary.BigEndian.Uint16(idData))
	}

	return nil
}
