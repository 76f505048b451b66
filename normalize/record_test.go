package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/vulndb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFromJSON(t *testing.T, body string) vulndb.FeedVulnerability {
	t.Helper()
	var raw vulndb.FeedVulnerability
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestRecord(t *testing.T) {
	t.Run("should map a complete record", func(t *testing.T) {
		raw := rawFromJSON(t, `{
			"id": "CVE-2026-1234",
			"published": "2026-01-02T10:00:00.000",
			"lastModified": "2026-01-03T11:30:00.000",
			"descriptions": [
				{"lang": "es", "value": "otra cosa"},
				{"lang": "en", "value": "buffer overflow in widget"}
			],
			"metrics": {
				"cvssMetricV31": [{
					"cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", "baseScore": 9.8, "baseSeverity": "CRITICAL"}
				}],
				"cvssMetricV2": [{
					"cvssData": {"vectorString": "AV:N/AC:L/Au:N/C:P/I:P/A:P", "baseScore": 7.5},
					"baseSeverity": "HIGH"
				}]
			},
			"weaknesses": [{
				"source": "nvd@nist.gov",
				"description": [
					{"lang": "en", "value": "CWE-787"},
					{"lang": "en", "value": "NVD-CWE-noinfo"}
				]
			}],
			"configurations": [{
				"nodes": [{
					"cpeMatch": [{
						"vulnerable": true,
						"criteria": "cpe:2.3:a:acme:widget:*:*:*:*:*:*:*:*",
						"versionEndExcluding": "1.4.2"
					}]
				}]
			}],
			"references": [
				{"url": "https://example.org/advisory", "source": "acme", "tags": ["Vendor Advisory"]}
			]
		}`)

		record, err := Record(raw)
		require.NoError(t, err)

		assert.Equal(t, "CVE-2026-1234", record.CVE.CVE)
		assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), record.CVE.DatePublished)
		assert.Equal(t, time.Date(2026, 1, 3, 11, 30, 0, 0, time.UTC), record.CVE.DateLastModified)
		assert.Equal(t, "buffer overflow in widget", record.CVE.Description)

		require.NotNil(t, record.CVE.CVSS)
		assert.InDelta(t, 9.8, *record.CVE.CVSS, 0.01)
		assert.Equal(t, models.SeverityCritical, record.CVE.Severity)
		require.NotNil(t, record.CVE.CVSSV2)
		assert.InDelta(t, 7.5, *record.CVE.CVSSV2, 0.01)
		assert.Equal(t, models.SeverityHigh, record.CVE.SeverityV2)

		require.Len(t, record.CWEs, 1)
		assert.Equal(t, "CWE-787", record.CWEs[0].CWE)
		require.Len(t, record.Weaknesses, 1)
		assert.Equal(t, "CVE-2026-1234", record.Weaknesses[0].CVEID)

		require.Len(t, record.Components, 1)
		assert.Equal(t, "acme", record.Components[0].Vendor)
		assert.Equal(t, "widget", record.Components[0].Product)
		assert.Equal(t, "*", record.Components[0].Version)
		require.NotNil(t, record.Components[0].VersionEndExcluding)
		assert.Equal(t, "1.4.2", *record.Components[0].VersionEndExcluding)

		require.Len(t, record.References, 1)
		assert.Equal(t, "https://example.org/advisory", record.References[0].URL)
		assert.Equal(t, []string{"Vendor Advisory"}, []string(record.References[0].Tags))
	})

	t.Run("should reject a record without an identifier", func(t *testing.T) {
		raw := rawFromJSON(t, `{"published": "2026-01-02T10:00:00.000", "lastModified": "2026-01-02T10:00:00.000"}`)
		_, err := Record(raw)
		assert.ErrorIs(t, err, ErrRecordInvalid)
	})

	t.Run("should reject a record with an unparseable timestamp", func(t *testing.T) {
		raw := rawFromJSON(t, `{"id": "CVE-2026-1", "published": "yesterday", "lastModified": "2026-01-02T10:00:00.000"}`)
		_, err := Record(raw)
		assert.ErrorIs(t, err, ErrRecordInvalid)
	})

	t.Run("should re-derive a missing score from the vector", func(t *testing.T) {
		raw := rawFromJSON(t, `{
			"id": "CVE-2026-2",
			"published": "2026-01-02T10:00:00.000",
			"lastModified": "2026-01-02T10:00:00.000",
			"metrics": {"cvssMetricV31": [{"cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}}]}
		}`)

		record, err := Record(raw)
		require.NoError(t, err)
		require.NotNil(t, record.CVE.CVSS)
		assert.InDelta(t, 9.8, *record.CVE.CVSS, 0.01)
		// no verbatim band shipped, so it is derived from the score
		assert.Equal(t, models.SeverityCritical, record.CVE.Severity)
	})

	t.Run("should keep the shipped severity band even when it disagrees with the score", func(t *testing.T) {
		raw := rawFromJSON(t, `{
			"id": "CVE-2026-3",
			"published": "2026-01-02T10:00:00.000",
			"lastModified": "2026-01-02T10:00:00.000",
			"metrics": {"cvssMetricV31": [{"cvssData": {"baseScore": 9.8, "baseSeverity": "HIGH"}}]}
		}`)

		record, err := Record(raw)
		require.NoError(t, err)
		assert.Equal(t, models.SeverityHigh, record.CVE.Severity)
	})

	t.Run("should skip negated nodes and non-vulnerable matches", func(t *testing.T) {
		raw := rawFromJSON(t, `{
			"id": "CVE-2026-4",
			"published": "2026-01-02T10:00:00.000",
			"lastModified": "2026-01-02T10:00:00.000",
			"configurations": [{
				"nodes": [
					{"negate": true, "cpeMatch": [{"vulnerable": true, "criteria": "cpe:2.3:a:acme:widget:1.0.0:*:*:*:*:*:*:*"}]},
					{"cpeMatch": [
						{"vulnerable": false, "criteria": "cpe:2.3:o:acme:os:1.0.0:*:*:*:*:*:*:*"},
						{"vulnerable": true, "criteria": "cpe:2.3:a:acme:gadget:2.0.0:*:*:*:*:*:*:*"}
					]}
				]
			}]
		}`)

		record, err := Record(raw)
		require.NoError(t, err)
		require.Len(t, record.Components, 1)
		assert.Equal(t, "gadget", record.Components[0].Product)
	})

	t.Run("should only keep CWE weaknesses", func(t *testing.T) {
		raw := rawFromJSON(t, `{
			"id": "CVE-2026-5",
			"published": "2026-01-02T10:00:00.000",
			"lastModified": "2026-01-02T10:00:00.000",
			"weaknesses": [{
				"source": "nvd@nist.gov",
				"description": [
					{"lang": "en", "value": "NVD-CWE-Other"},
					{"lang": "de", "value": "CWE-79"},
					{"lang": "en", "value": "CWE-89"}
				]
			}]
		}`)

		record, err := Record(raw)
		require.NoError(t, err)
		require.Len(t, record.CWEs, 1)
		assert.Equal(t, "CWE-89", record.CWEs[0].CWE)
	})
}

func TestSeverityFromScore(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, models.SeverityFromScore(9.0))
	assert.Equal(t, models.SeverityHigh, models.SeverityFromScore(8.9))
	assert.Equal(t, models.SeverityHigh, models.SeverityFromScore(7.0))
	assert.Equal(t, models.SeverityMedium, models.SeverityFromScore(6.9))
	assert.Equal(t, models.SeverityMedium, models.SeverityFromScore(4.0))
	assert.Equal(t, models.SeverityLow, models.SeverityFromScore(3.9))
	assert.Equal(t, models.SeverityLow, models.SeverityFromScore(0))
}
