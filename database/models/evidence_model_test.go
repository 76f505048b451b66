package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExploitEvidenceValidate(t *testing.T) {
	t.Run("repository evidence may carry signals", func(t *testing.T) {
		evidence := ExploitEvidence{
			CVEID: "CVE-2026-1234",
			URL:   "https://github.com/a/poc",
			Kind:  ExploitEvidenceRepository,
			Stars: 42,
		}
		assert.NoError(t, evidence.Validate())
	})

	t.Run("file evidence must not carry a star count", func(t *testing.T) {
		evidence := ExploitEvidence{
			CVEID: "CVE-2026-1234",
			URL:   "https://github.com/a/b/blob/main/poc.py",
			Kind:  ExploitEvidenceFile,
			Stars: 3,
		}
		assert.Error(t, evidence.Validate())

		evidence.Stars = 0
		assert.NoError(t, evidence.Validate())
	})

	t.Run("unknown kinds and missing urls are rejected", func(t *testing.T) {
		assert.Error(t, ExploitEvidence{URL: "https://x", Kind: "gist"}.Validate())
		assert.Error(t, ExploitEvidence{Kind: ExploitEvidenceRepository}.Validate())
	})
}

func TestDeliveryChangeHash(t *testing.T) {
	modified := time.Date(2026, 1, 3, 11, 30, 0, 0, time.UTC)

	t.Run("is stable for the same change", func(t *testing.T) {
		a := DeliveryChangeHash("CVE-2026-1234", "updated", modified)
		b := DeliveryChangeHash("CVE-2026-1234", "updated", modified)
		assert.Equal(t, a, b)
		assert.Len(t, a, 16)
	})

	t.Run("differs across revisions and outcomes", func(t *testing.T) {
		base := DeliveryChangeHash("CVE-2026-1234", "updated", modified)
		assert.NotEqual(t, base, DeliveryChangeHash("CVE-2026-1234", "updated", modified.Add(time.Second)))
		assert.NotEqual(t, base, DeliveryChangeHash("CVE-2026-1234", "inserted", modified))
		assert.NotEqual(t, base, DeliveryChangeHash("CVE-2026-9999", "updated", modified))
	})
}
