package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	c := bookingContext("wa:5511999999999")
	c.TimePref = clockPtr("14:00")
	c.SelectedSlot = clockPtr("14:30")
	c.Operation = OpRemark
	c.RemarkAppointmentID = 7
	c.PickableAppointmentIDs = []int64{7, 8}

	data, err := EncodeContext(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date":"2030-05-14"`)
	assert.Contains(t, string(data), `"selected_slot":"14:30"`)

	got, err := DecodeContext(data, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEmptyContextEncodesToEmptyObject(t *testing.T) {
	data, err := EncodeContext(Context{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	for _, in := range [][]byte{nil, []byte(`{}`)} {
		c, err := DecodeContext(in, time.UTC)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	}
}

func TestDecodeContextRejectsCorruptData(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"operation":"refund"}`,
		`{"date":"14/05/2030"}`,
		`{"selected_slot":"25:00"}`,
		`{"time_pref":"soon"}`,
	} {
		_, err := DecodeContext([]byte(in), time.UTC)
		assert.Error(t, err, in)
	}
}

func TestBookingComplete(t *testing.T) {
	c := bookingContext("")
	assert.False(t, c.BookingComplete())
	c.SelectedSlot = clockPtr("10:00")
	assert.True(t, c.BookingComplete())
	c.ServiceID = 0
	assert.False(t, c.BookingComplete())
}
