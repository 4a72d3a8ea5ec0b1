package monochromator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
)

func testRecord() *equipment.Record {
	return &equipment.Record{
		Alias:        "mono-hrs",
		Manufacturer: "Princeton Instruments",
		Model:        "HRS500M",
		Serial:       "HRS01",
	}
}

func newTestHRS(t *testing.T) (*HRS, *SimController) {
	t.Helper()
	sim := NewSimController()
	hrs, err := New(testRecord(), sim)
	require.NoError(t, err)
	return hrs, sim
}

func TestNewQueriesGratingMetadata(t *testing.T) {
	hrs, _ := newTestHRS(t)

	want := map[int]Grating{
		1: {Blaze: "300NM", Density: "1200/mm"},
		2: {Blaze: "500NM", Density: "1200/mm"},
		3: {Blaze: "750NM", Density: "600/mm"},
	}
	if diff := cmp.Diff(want, hrs.GratingInfo()); diff != "" {
		t.Errorf("grating info mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPrefersRecordMetadata(t *testing.T) {
	record := testRecord()
	record.UserDefined = []equipment.UserMap{
		{
			Name: "gratings",
			Items: []equipment.MapItem{
				{Key: 1, Blaze: "450NM", Density: "900/mm"},
			},
		},
		{
			Name: "filters",
			Items: []equipment.MapItem{
				{Key: 1, Value: "Open"},
				{Key: 2, Value: "400 nm"},
			},
		},
	}

	sim := NewSimController()
	hrs, err := New(record, sim)
	require.NoError(t, err)

	assert.Equal(t, map[int]Grating{1: {Blaze: "450NM", Density: "900/mm"}}, hrs.GratingInfo())
	assert.Equal(t, map[int]string{1: "Open", 2: "400 nm"}, hrs.FilterInfo())

	// no device queries were needed for the metadata
	assert.Zero(t, sim.CommandCount())
}

func TestDefaultFilterInfo(t *testing.T) {
	hrs, _ := newTestHRS(t)

	info := hrs.FilterInfo()
	assert.Len(t, info, 6)
	assert.Equal(t, "None (open)", info[1])
	assert.Equal(t, "Blank (closed)", info[6])
}

func TestSetSlitWidth(t *testing.T) {
	hrs, _ := newTestHRS(t)

	actual, err := hrs.SetFrontEntranceSlitWidth(150)
	require.NoError(t, err)
	assert.Equal(t, 150, actual)

	got, err := hrs.FrontEntranceSlitWidth()
	require.NoError(t, err)
	assert.Equal(t, 150, got)

	// the other slit is untouched
	got, err = hrs.FrontExitSlitWidth()
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}

func TestSetSlitWidthOutOfRange(t *testing.T) {
	hrs, sim := newTestHRS(t)
	commands := sim.CommandCount()

	for _, um := range []int{9, 0, -5, 3001} {
		_, err := hrs.SetFrontEntranceSlitWidth(um)
		require.Error(t, err, "width %d", um)
		_, err = hrs.SetFrontExitSlitWidth(um)
		require.Error(t, err, "width %d", um)
	}
	// rejected values never reach the device
	assert.Equal(t, commands, sim.CommandCount())
}

func TestSetSlitWidthReadBackMismatch(t *testing.T) {
	hrs, sim := newTestHRS(t)
	sim.SlitDrift = true

	_, err := hrs.SetFrontExitSlitWidth(200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "199")
}

func TestSetWavelengthRoundsToThreeDecimals(t *testing.T) {
	hrs, sim := newTestHRS(t)
	sim.EncoderOffset = 0.002

	encoder, err := hrs.SetWavelength(500.12345)
	require.NoError(t, err)

	assert.InDelta(t, 500.123, sim.LastWavelength(), 1e-9)
	// the encoder value is returned even though it differs from the request
	assert.InDelta(t, 500.125, encoder, 1e-9)
}

func TestSetWavelengthOutOfRange(t *testing.T) {
	hrs, sim := newTestHRS(t)
	commands := sim.CommandCount()

	for _, nm := range []float64{-2800.001, 2800.001, 5000} {
		_, err := hrs.SetWavelength(nm)
		require.Error(t, err, "wavelength %v", nm)
	}
	assert.Equal(t, commands, sim.CommandCount())

	// values that round back into range are accepted
	_, err := hrs.SetWavelength(2800.0004)
	require.NoError(t, err)
}

func TestSetFilterPosition(t *testing.T) {
	hrs, _ := newTestHRS(t)

	actual, err := hrs.SetFilterPosition(4)
	require.NoError(t, err)
	assert.Equal(t, 4, actual)

	for _, position := range []int{0, 7, -1} {
		_, err := hrs.SetFilterPosition(position)
		require.Error(t, err, "position %d", position)
	}
}

func TestSetGratingPosition(t *testing.T) {
	hrs, _ := newTestHRS(t)

	actual, err := hrs.SetGratingPosition(3)
	require.NoError(t, err)
	assert.Equal(t, 3, actual)

	for _, position := range []int{0, 4} {
		_, err := hrs.SetGratingPosition(position)
		require.Error(t, err, "position %d", position)
	}
}

func TestHoming(t *testing.T) {
	hrs, _ := newTestHRS(t)

	_, err := hrs.SetFilterPosition(5)
	require.NoError(t, err)
	position, err := hrs.HomeFilterWheel()
	require.NoError(t, err)
	assert.Equal(t, 1, position)

	_, err = hrs.SetFrontEntranceSlitWidth(500)
	require.NoError(t, err)
	width, err := hrs.HomeFrontEntranceSlit()
	require.NoError(t, err)
	assert.Equal(t, 10, width)

	width, err = hrs.HomeFrontExitSlit()
	require.NoError(t, err)
	assert.Equal(t, 10, width)
}
