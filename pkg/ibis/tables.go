package ibis

import "spice2ibis/internal/consts"

// VIEntry is one sampled point of a current-vs-voltage curve.
type VIEntry struct {
	V float64
	I TypMinMax
}

// VITable is an ordered VI curve. Size always mirrors len(Entries) and
// never exceeds consts.MaxTableSize in any table handed to the writer.
type VITable struct {
	Size    int
	Entries []VIEntry
}

// NewVITable returns a pre-sized table with unset currents, ready for the
// per-corner result passes to fill in.
func NewVITable(n int) *VITable {
	t := &VITable{Entries: make([]VIEntry, n)}
	for i := range t.Entries {
		t.Entries[i].I = NewTMM()
	}
	t.SetSize()
	return t
}

// SetSize re-derives the size field after a mutation.
func (t *VITable) SetSize() { t.Size = len(t.Entries) }

// Append adds an entry, refusing to grow past the IBIS table cap.
func (t *VITable) Append(e VIEntry) bool {
	if len(t.Entries) >= consts.MaxTableSize {
		return false
	}
	t.Entries = append(t.Entries, e)
	t.SetSize()
	return true
}

// Truncate keeps the first n entries.
func (t *VITable) Truncate(n int) {
	if n < len(t.Entries) {
		t.Entries = t.Entries[:n]
	}
	t.SetSize()
}

// WaveEntry is one sampled point of a transient trace. I is only populated
// for composite-current capable simulations and stays unset otherwise.
type WaveEntry struct {
	T float64
	V TypMinMax
	I TypMinMax
}

// WaveTable is an ordered time/voltage table.
type WaveTable struct {
	Size    int
	Entries []WaveEntry
}

func NewWaveTable(n int) *WaveTable {
	t := &WaveTable{Entries: make([]WaveEntry, n)}
	for i := range t.Entries {
		t.Entries[i].V = NewTMM()
		t.Entries[i].I = NewTMM()
	}
	t.SetSize()
	return t
}

func (t *WaveTable) SetSize() { t.Size = len(t.Entries) }

// HasCurrent reports whether any sample carries composite-current data.
func (t *WaveTable) HasCurrent() bool {
	for i := range t.Entries {
		if t.Entries[i].I.AnySet() {
			return true
		}
	}
	return false
}

// Ramp holds 20%-80% edge characterization.
type Ramp struct {
	DVRise TypMinMax
	DtRise TypMinMax
	DVFall TypMinMax
	DtFall TypMinMax
	Derate float64 // percent applied to min/max corners
}

func NewRamp() Ramp {
	return Ramp{
		DVRise: NewTMM(),
		DtRise: NewTMM(),
		DVFall: NewTMM(),
		DtFall: NewTMM(),
	}
}

// Waveform is one fixture's transient table. The nine positional fixture
// parameters follow the [Rising Waveform] keyword order.
type Waveform struct {
	RFixture    float64
	VFixture    float64
	VFixtureMin float64
	VFixtureMax float64
	LFixture    float64
	CFixture    float64
	RDut        float64
	LDut        float64
	CDut        float64

	Table *WaveTable
}
