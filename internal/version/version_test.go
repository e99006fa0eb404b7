package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionCommand prints the full build string.
func TestVersionCommand(t *testing.T) {
	t.Parallel()

	require.Contains(t, Full(), Short())

	root := &cobra.Command{Use: "alarm-controller"}
	AttachCobraVersionCommand(root)

	var buf bytes.Buffer

	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "alarm-controller "+Version)
}
