package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWriteTextfile verifies recorded values appear in the textfile output.
func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveBuild(OutcomeBuilt, "86", 90*time.Second)
	r.ObserveBuild(OutcomeSkipped, "86", 0)
	r.ObserveInstall(OutcomeInstalled, "89")
	r.AddDownloaded(2048)
	r.AddPublished(2)

	path := filepath.Join(t.TempDir(), "archpack.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	require.Contains(t, text, `archpack_builds_total{arch="86",outcome="built"} 1`)
	require.Contains(t, text, `archpack_builds_total{arch="86",outcome="skipped"} 1`)
	require.Contains(t, text, `archpack_installs_total{arch="89",outcome="installed"} 1`)
	require.Contains(t, text, "archpack_downloaded_bytes_total 2048")
	require.Contains(t, text, "archpack_published_assets_total 2")
	require.Contains(t, text, "archpack_build_duration_seconds_count 1")
}

// TestNilRecorder verifies a nil recorder is a silent no-op.
func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.ObserveBuild(OutcomeFailed, "86", time.Second)
	r.ObserveInstall(OutcomeFailed, "86")
	r.AddDownloaded(1)
	r.AddPublished(1)
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	require.NoError(t, New().WriteTextfile(""))
}
