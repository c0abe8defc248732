package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateISODate(t *testing.T) {
	assert.NoError(t, ValidateISODate("2026-07-01"))
	assert.Error(t, ValidateISODate("01/07/2026"))
	assert.Error(t, ValidateISODate("2026-13-01"))
	assert.Error(t, ValidateISODate(""))
}

func TestValidateCurrency(t *testing.T) {
	assert.NoError(t, ValidateCurrency("ILS"))
	assert.NoError(t, ValidateCurrency("USD"))
	assert.Error(t, ValidateCurrency("ils"))
	assert.Error(t, ValidateCurrency("SHEKEL"))
	assert.Error(t, ValidateCurrency(""))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(118.5))
	assert.Error(t, ValidateAmount(-1))
	assert.Error(t, ValidateAmount(math.NaN()))
	assert.Error(t, ValidateAmount(math.Inf(1)))
}
