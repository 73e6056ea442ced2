package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, ok := ParseStatus(string(s))
		assert.True(t, ok, s)
		assert.Equal(t, s, got)
	}

	got, ok := ParseStatus(" annulé ")
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, got)

	for _, bad := range []string{"", "inconnu", "Annulé", "cancelled"} {
		_, ok := ParseStatus(bad)
		assert.False(t, ok, bad)
	}
}

func TestRestocks(t *testing.T) {
	assert.True(t, Restocks(StatusPending, StatusCancelled))
	assert.True(t, Restocks(StatusShipping, StatusCancelled))
	assert.False(t, Restocks(StatusCancelled, StatusCancelled))
	assert.False(t, Restocks(StatusCancelled, StatusPending))
	assert.False(t, Restocks(StatusPending, StatusConfirmed))
}

func TestReopens(t *testing.T) {
	for _, to := range Statuses {
		assert.Equal(t, to != StatusCancelled, Reopens(StatusCancelled, to), to)
		assert.False(t, Reopens(StatusPending, to), to)
	}
}
