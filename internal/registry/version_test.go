package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion_IsQuarantined(t *testing.T) {
	require.True(t, Version{Tag: "quarantine-1.5.0"}.IsQuarantined())
	require.False(t, Version{Tag: "latest"}.IsQuarantined())
	require.False(t, Version{Tag: "stable"}.IsQuarantined())
	// Detection is a prefix match on "quarantine-", dash included.
	require.False(t, Version{Tag: "quarantine"}.IsQuarantined())
}

func TestVersion_IsProductionEligible(t *testing.T) {
	require.True(t, Version{CurrentStage: "PROD", ReleaseStatus: "RELEASED"}.IsProductionEligible())
	require.True(t, Version{CurrentStage: "PROD", ReleaseStatus: "TRUSTED_RELEASE"}.IsProductionEligible())
	require.True(t, Version{CurrentStage: "prod", ReleaseStatus: "released"}.IsProductionEligible())
	require.False(t, Version{CurrentStage: "PROD", ReleaseStatus: "STAGED"}.IsProductionEligible())
	require.False(t, Version{CurrentStage: "PROD", ReleaseStatus: ""}.IsProductionEligible())
	// An eligible status outside the PROD stage never qualifies.
	require.False(t, Version{CurrentStage: "QA", ReleaseStatus: "RELEASED"}.IsProductionEligible())
	require.False(t, Version{ReleaseStatus: "RELEASED"}.IsProductionEligible())
}

func TestVersion_BackupTag(t *testing.T) {
	v := Version{Properties: map[string][]string{
		PropBackupBeforeLatest: {"stable"},
		"empty":                {},
		"blank":                {""},
	}}

	tag, ok := v.BackupTag(PropBackupBeforeLatest)
	require.True(t, ok)
	require.Equal(t, "stable", tag)

	_, ok = v.BackupTag("empty")
	require.False(t, ok)

	_, ok = v.BackupTag("blank")
	require.False(t, ok)

	_, ok = v.BackupTag("missing")
	require.False(t, ok)

	_, ok = Version{}.BackupTag(PropBackupBeforeLatest)
	require.False(t, ok)
}

func TestQuarantineTagFor(t *testing.T) {
	require.Equal(t, "quarantine-2.0.0", QuarantineTagFor("2.0.0"))
}
