package aggregator

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamu-vscl/dfti/internal/config"
	"github.com/tamu-vscl/dfti/internal/sensordata"
)

func newTestAggregator(t *testing.T, cfg config.Config) (*Aggregator, string) {
	t.Helper()
	dir := t.TempDir()
	a := New(cfg)
	require.NoError(t, a.Start(dir))
	return a, dir
}

func readCSV(t *testing.T, dir, prefix string) [][]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".csv" && len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			f, err := os.Open(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			defer f.Close()
			rows, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			return rows
		}
	}
	t.Fatalf("no csv file found with prefix %q in %s", prefix, dir)
	return nil
}

func TestWriteTickSkipsStaleSensorWhenWaitForUpdate(t *testing.T) {
	cfg := config.Config{
		LogRateHz:     100,
		FlushTimeSec:  10,
		WaitForUpdate: true,
		UseUADC:       true,
		UseVN200:      true,
	}
	a, dir := newTestAggregator(t, cfg)

	a.OnUADC(sensordata.UADCData{SeqID: 1, IASMps: 20})
	a.writeTick()

	uadcRows := readCSV(t, dir, "uadc-")
	require.Len(t, uadcRows, 2) // header + one data row

	vnRows := readCSV(t, dir, "vn200-")
	require.Len(t, vnRows, 1) // header only, no data written yet
}

func TestWriteTickClearsFreshAfterWriting(t *testing.T) {
	cfg := config.Config{LogRateHz: 100, FlushTimeSec: 10, WaitForUpdate: true, UseUADC: true}
	a, dir := newTestAggregator(t, cfg)

	a.OnUADC(sensordata.UADCData{SeqID: 1})
	a.writeTick()
	a.writeTick() // no new sample since last tick; must not emit another row

	rows := readCSV(t, dir, "uadc-")
	assert.Len(t, rows, 2)
}

func TestEveryRowHasSameFieldCountAsHeader(t *testing.T) {
	cfg := config.Config{LogRateHz: 100, FlushTimeSec: 10, WaitForUpdate: true, UseRIO: true}
	a, dir := newTestAggregator(t, cfg)

	a.OnRIO(sensordata.RIOData{Values: []float32{1.5, -2.25, 3.0}})
	a.writeTick()
	a.OnRIO(sensordata.RIOData{Values: []float32{4.0, 5.0, 6.0}})
	a.writeTick()

	rows := readCSV(t, dir, "rio-")
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, len(rows[0]))
	}
}

func TestWaitForAllSensorsGatesEntireTick(t *testing.T) {
	cfg := config.Config{
		LogRateHz:         100,
		FlushTimeSec:      10,
		WaitForUpdate:     true,
		WaitForAllSensors: true,
		UseUADC:           true,
		UseVN200:          true,
	}
	a, dir := newTestAggregator(t, cfg)

	a.OnUADC(sensordata.UADCData{SeqID: 1})
	a.writeTick() // VN200 never fresh; whole tick must be skipped

	uadcRows := readCSV(t, dir, "uadc-")
	assert.Empty(t, uadcRows) // not even a header: the tick never reached any sensor
}

func TestVN200LegacyVariantAddsExtraColumns(t *testing.T) {
	cfg := config.Config{
		LogRateHz:    100,
		FlushTimeSec: 10,
		UseVN200:     true,
	}
	cfg.VN200.PacketVariant = "legacy"
	a, dir := newTestAggregator(t, cfg)

	a.OnVN200(sensordata.VN200Data{
		HasLegacyFields: true,
		MagGauss:        [3]float32{0.1, 0.2, 0.3},
		TempC:           24.5,
		PressureKpa:     98.2,
	})
	a.writeTick()

	rows := readCSV(t, dir, "vn200-")
	require.Len(t, rows, 2)

	header := rows[0]
	assert.Equal(t, "mag_x", header[len(header)-5])
	assert.Equal(t, "mag_y", header[len(header)-4])
	assert.Equal(t, "mag_z", header[len(header)-3])
	assert.Equal(t, "temp_c", header[len(header)-2])
	assert.Equal(t, "pressure_kpa", header[len(header)-1])

	data := rows[1]
	require.Len(t, data, len(header))
	assert.Equal(t, "24.5000000", data[len(data)-2])
	assert.Equal(t, "98.1999969", data[len(data)-1]) // float32(98.2) rounds down at f32 precision
}

func TestVN200InsVariantHasNoLegacyColumns(t *testing.T) {
	cfg := config.Config{LogRateHz: 100, FlushTimeSec: 10, UseVN200: true}
	a, dir := newTestAggregator(t, cfg)

	a.OnVN200(sensordata.VN200Data{GPSTimeNs: 1})
	a.writeTick()

	rows := readCSV(t, dir, "vn200-")
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 21)
	assert.Len(t, rows[1], 21)
}

func TestAutopilotRowFieldCount(t *testing.T) {
	cfg := config.Config{LogRateHz: 100, FlushTimeSec: 10, WaitForUpdate: true, UseMavlink: true}
	a, dir := newTestAggregator(t, cfg)

	a.OnAP(sensordata.APData{RCIn: [8]uint16{1, 2, 3, 4, 5, 6, 7, 8}, RCOut: [8]uint16{9, 10, 11, 12, 13, 14, 15, 16}})
	a.writeTick()

	rows := readCSV(t, dir, "autopilot-")
	require.Len(t, rows, 2)
	// unix_time, rc_in_time, 8 rc_in, rc_out_time, 8 rc_out = 19 fields.
	assert.Len(t, rows[0], 19)
	assert.Len(t, rows[1], 19)
}
