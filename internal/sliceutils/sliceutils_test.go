package sliceutils

import (
	"strconv"
	"testing"

	testutils "github.com/astghikaramyan/resource-service/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	testutils.SkipIfIntegration(t)

	result := Map(strconv.Itoa, []int{1, 2, 3})
	assert.Equal(t, []string{"1", "2", "3"}, result)
}

func TestMapEmpty(t *testing.T) {
	testutils.SkipIfIntegration(t)

	result := Map(strconv.Itoa, []int{})
	assert.Equal(t, []string{}, result)
}

func TestFilter(t *testing.T) {
	testutils.SkipIfIntegration(t)

	result := Filter(func(v int) bool { return v%2 == 0 }, []int{1, 2, 3, 4})
	assert.Equal(t, []int{2, 4}, result)
}

func TestFindFirst(t *testing.T) {
	testutils.SkipIfIntegration(t)

	result := FindFirst(func(v int) bool { return v > 2 }, []int{1, 2, 3, 4})
	assert.NotNil(t, result)
	assert.Equal(t, 3, *result)
}

func TestFindFirstNoMatch(t *testing.T) {
	testutils.SkipIfIntegration(t)

	result := FindFirst(func(v int) bool { return v > 10 }, []int{1, 2, 3})
	assert.Nil(t, result)
}
