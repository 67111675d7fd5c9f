package tools

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestAllowed(t *testing.T) {
	cases := []struct {
		name       string
		permission model.ToolPermission
		defOn      bool
		isAdmin    bool
		override   *bool
		want       bool
	}{
		{"disabled user", model.ToolDisabled, true, false, nil, false},
		{"disabled admin", model.ToolDisabled, true, true, nil, false},
		{"disabled override ignored", model.ToolDisabled, true, false, boolPtr(true), false},

		{"admin_only user", model.ToolAdminOnly, true, false, nil, false},
		{"admin_only admin", model.ToolAdminOnly, true, true, nil, true},
		{"admin_only user override ignored", model.ToolAdminOnly, true, false, boolPtr(true), false},
		{"admin_only admin override ignored", model.ToolAdminOnly, true, true, boolPtr(false), true},

		{"always_on user", model.ToolAlwaysOn, false, false, nil, true},
		{"always_on admin", model.ToolAlwaysOn, false, true, nil, true},
		{"always_on override ignored", model.ToolAlwaysOn, false, false, boolPtr(false), true},

		{"user_toggle default on", model.ToolUserToggle, true, false, nil, true},
		{"user_toggle default off", model.ToolUserToggle, false, false, nil, false},
		{"user_toggle opted out", model.ToolUserToggle, true, false, boolPtr(false), false},
		{"user_toggle opted in", model.ToolUserToggle, false, false, boolPtr(true), true},
		{"user_toggle admin same as user", model.ToolUserToggle, false, true, nil, false},

		{"opt_in default off", model.ToolOptIn, true, false, nil, false},
		{"opt_in enabled", model.ToolOptIn, false, false, boolPtr(true), true},
		{"opt_in explicit off", model.ToolOptIn, false, false, boolPtr(false), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := model.ToolDefinition{
				Name:           "t",
				Permission:     tc.permission,
				DefaultEnabled: tc.defOn,
			}
			require.Equal(t, tc.want, Allowed(def, tc.isAdmin, tc.override))
		})
	}
}

func TestAllowedUnknownPermissionDenies(t *testing.T) {
	def := model.ToolDefinition{Name: "t", Permission: model.ToolPermission("bogus"), DefaultEnabled: true}
	require.False(t, Allowed(def, true, boolPtr(true)))
}
