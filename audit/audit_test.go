package audit

import (
	"path/filepath"
	"testing"

	"github.com/quaysystems/fixengine/fixp"
	"github.com/quaysystems/fixengine/session"

	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(Config{DBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLog_RecordsSessionTransitions(t *testing.T) {
	l := openTestLog(t)

	l.SessionTransition("sess-1", session.Connected, session.Active, "Logon", "")

	var count int
	require.NoError(t, l.db.QueryRow(
		`SELECT COUNT(*) FROM session_transitions WHERE session_id = ? AND to_state = ?`,
		"sess-1", session.Active.String(),
	).Scan(&count))
	require.Equal(t, 1, count)
}

func TestLog_RecordsConnectionTransitions(t *testing.T) {
	l := openTestLog(t)

	l.ConnectionTransition(42, fixp.Connected, fixp.SentNegotiate, "Negotiate", "")

	var count int
	require.NoError(t, l.db.QueryRow(
		`SELECT COUNT(*) FROM connection_transitions WHERE connection_id = ? AND to_state = ?`,
		int64(42), fixp.SentNegotiate.String(),
	).Scan(&count))
	require.Equal(t, 1, count)
}
