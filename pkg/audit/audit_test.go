package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-go/pkg/types"
)

func TestRecordAndTailOrdering(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.RecordValidation("AAAA", types.StatusOK, false))
	require.NoError(t, log.RecordValidation("BBBB", types.StatusBadUntrusted, true))
	require.NoError(t, log.RecordValidation("CCCC", types.StatusOK, false))

	recs, err := log.Tail(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "CCCC", recs[0].Thumbprint)
	require.Equal(t, "BBBB", recs[1].Thumbprint)
}
