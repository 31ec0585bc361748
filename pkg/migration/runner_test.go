package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortUnits(t *testing.T) {
	units := []Unit{
		tableUnit{version: "20210701000000", table: restaurantsFixture()},
		tableUnit{version: "20210629195916", table: restaurantsFixture()},
		tableUnit{version: "20210630000000", table: restaurantsFixture()},
	}

	sorted := SortUnits(units)

	var got []string
	for _, u := range sorted {
		got = append(got, u.Version())
	}
	assert.Equal(t, []string{"20210629195916", "20210630000000", "20210701000000"}, got)
	assert.Equal(t, "20210701000000", units[0].Version(), "input must not be reordered")
}

func TestGenerateVersion(t *testing.T) {
	v := GenerateVersion()
	assert.Len(t, v, 14)
}

func TestRunnerOptions(t *testing.T) {
	r := NewRunner(nil).WithLockID(42)
	assert.Equal(t, int64(42), r.lockID)
	assert.NotNil(t, r.log)
}
