package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStudentDisplayName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", Student{FirstName: " Ada ", LastName: "Lovelace"}.DisplayName())
	require.Equal(t, "Ada", Student{FirstName: "Ada"}.DisplayName())
}

func TestAssignmentIsPastDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	require.False(t, Assignment{}.IsPastDue(now))
	require.True(t, Assignment{DueDate: &past}.IsPastDue(now))
}
