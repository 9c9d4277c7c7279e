package assistant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeName_BasicCases(t *testing.T) {
	cases := []struct {
		in       string
		want     string
		modified bool
	}{
		{"My Assistant", "my_assistant", true},
		{"Test@Name!", "testname", true},
		{"My  Multiple   Spaces", "my_multiple_spaces", true},
		{"test_123", "test_123", false},
		{"", "untitled", true},
	}
	for _, tc := range cases {
		got, modified := SanitizeName(tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
		require.Equal(t, tc.modified, modified, "input %q", tc.in)
	}
}

func TestSanitizeName_TruncatesToMaxLength(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "a"
	}
	got, modified := SanitizeName(long)
	require.Len(t, got, maxNameLength)
	require.True(t, modified)
}

func TestSanitizeWithDuplicateCheck_ReturnsBaseWhenFree(t *testing.T) {
	got, modified, err := SanitizeWithDuplicateCheck("Tutor", func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	require.Equal(t, "tutor", got)
	require.True(t, modified)
}

func TestSanitizeWithDuplicateCheck_AppendsCounterOnCollision(t *testing.T) {
	taken := map[string]bool{"tutor": true, "tutor_2": true}
	got, modified, err := SanitizeWithDuplicateCheck("Tutor", func(c string) (bool, error) { return taken[c], nil })
	require.NoError(t, err)
	require.Equal(t, "tutor_3", got)
	require.True(t, modified)
}
