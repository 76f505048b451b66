package normalize

import (
	"testing"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/utils"
	"github.com/stretchr/testify/assert"
)

func TestConvertToSemver(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "1.2.3", expected: "v1.2.3"},
		{input: "v1.2.3", expected: "v1.2.3"},
		{input: "1.2", expected: "v1.2.0"},
		{input: "1", expected: "v1.0.0"},
		{input: "2:1.2.3", expected: "v1.2.3"},
		{input: "1.02.3", expected: "v1.2.3"},
		{input: "1.2.3-rc1", expected: "v1.2.3-rc1"},
		{input: "1.2.3+build5", expected: "v1.2.3+build5"},
		{input: "1.2.3-rc1+build5", expected: "v1.2.3-rc1+build5"},
		{input: "", wantErr: true},
		{input: "1.2.3.4", wantErr: true},
		{input: "1.2a.3", wantErr: true},
		{input: "1..3", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ConvertToSemver(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestVersionInRange(t *testing.T) {
	t.Run("wildcard matches everything", func(t *testing.T) {
		component := models.AffectedComponent{Version: models.WildcardVersion}
		assert.True(t, VersionInRange("0.0.1", component))
		assert.True(t, VersionInRange("99.0.0", component))
	})

	t.Run("wildcard with bounds respects the bounds", func(t *testing.T) {
		component := models.AffectedComponent{
			Version:             models.WildcardVersion,
			VersionEndExcluding: utils.Ptr("2.0.0"),
		}
		assert.True(t, VersionInRange("1.9.9", component))
		assert.False(t, VersionInRange("2.0.0", component))
		assert.False(t, VersionInRange("3.1.0", component))
	})

	t.Run("exact version matches only itself", func(t *testing.T) {
		component := models.AffectedComponent{Version: "1.4.2"}
		assert.True(t, VersionInRange("1.4.2", component))
		assert.True(t, VersionInRange("v1.4.2", component))
		assert.False(t, VersionInRange("1.4.3", component))
	})

	t.Run("the no-version sentinel without bounds matches nothing", func(t *testing.T) {
		component := models.AffectedComponent{Version: "-"}
		assert.False(t, VersionInRange("1.0.0", component))
	})

	t.Run("bounded range", func(t *testing.T) {
		component := models.AffectedComponent{
			Version:               "-",
			VersionStartIncluding: utils.Ptr("1.2.0"),
			VersionEndExcluding:   utils.Ptr("1.4.2"),
		}
		assert.False(t, VersionInRange("1.1.9", component))
		assert.True(t, VersionInRange("1.2.0", component))
		assert.True(t, VersionInRange("1.4.1", component))
		assert.False(t, VersionInRange("1.4.2", component))
	})

	t.Run("inclusive upper bound", func(t *testing.T) {
		component := models.AffectedComponent{
			Version:             "-",
			VersionEndIncluding: utils.Ptr("2.0.0"),
		}
		assert.True(t, VersionInRange("0.1.0", component))
		assert.True(t, VersionInRange("2.0.0", component))
		assert.False(t, VersionInRange("2.0.1", component))
	})

	t.Run("missing upper bound is open ended", func(t *testing.T) {
		component := models.AffectedComponent{
			Version:               "-",
			VersionStartIncluding: utils.Ptr("3.0.0"),
		}
		assert.True(t, VersionInRange("999.0.0", component))
		assert.False(t, VersionInRange("2.9.9", component))
	})

	t.Run("unparseable declared versions never match", func(t *testing.T) {
		component := models.AffectedComponent{Version: models.WildcardVersion}
		assert.True(t, VersionInRange("latest", component))

		ranged := models.AffectedComponent{
			Version:               "-",
			VersionStartIncluding: utils.Ptr("1.0.0"),
		}
		assert.False(t, VersionInRange("latest", ranged))
	})
}
