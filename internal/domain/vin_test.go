package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidVIN(t *testing.T) {
	assert.True(t, ValidVIN("1HGCV1F30LA012345"))
	assert.True(t, ValidVIN("1FTFW1E50MKE12345"))

	// Wrong length
	assert.False(t, ValidVIN("1HGCV1F30LA01234"))   // 16
	assert.False(t, ValidVIN("1HGCV1F30LA0123456")) // 18
	assert.False(t, ValidVIN(""))

	// Forbidden characters I, O, Q
	assert.False(t, ValidVIN("IHGCV1F30LA012345"))
	assert.False(t, ValidVIN("1HGCV1F3OLA012345"))
	assert.False(t, ValidVIN("1HGCV1F30LA01234Q"))

	// Lowercase is not a VIN
	assert.False(t, ValidVIN("1hgcv1f30la012345"))
}

func TestValidPriceAndMileage(t *testing.T) {
	assert.True(t, ValidPrice(1_000))
	assert.True(t, ValidPrice(500_000))
	assert.False(t, ValidPrice(999))
	assert.False(t, ValidPrice(500_001))
	assert.False(t, ValidPrice(0))

	assert.True(t, ValidMileage(0))
	assert.True(t, ValidMileage(999_998))
	assert.False(t, ValidMileage(-1))
	assert.False(t, ValidMileage(999_999))
}

func TestHasCriticalFields(t *testing.T) {
	v := ParsedVehicle{
		VIN: "1HGCV1F30LA012345", Year: 2020, Make: "Honda", Model: "Accord",
		Price: 23495, Mileage: 42000,
	}
	assert.True(t, v.HasCriticalFields())

	v.VIN = ""
	assert.False(t, v.HasCriticalFields())
}
