package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculator(t *testing.T) {
	tool := &CalculatorTool{}
	cases := []struct {
		expr string
		want string
	}{
		{"2 + 3", "5"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"2 ^ 10", "1024"},
		{"-5 + 3", "-2"},
		{"10 % 3", "1"},
		{"2 ^ 3 ^ 2", "512"},
		{"1.5 * 2", "3"},
	}
	for _, tc := range cases {
		got, err := tool.Execute(context.Background(), map[string]interface{}{"expression": tc.expr})
		require.NoError(t, err, tc.expr)
		require.Equal(t, tc.want, got, tc.expr)
	}
}

func TestCalculatorErrors(t *testing.T) {
	tool := &CalculatorTool{}
	for _, expr := range []string{"1 / 0", "2 +", "(1 + 2", "abc", ""} {
		_, err := tool.Execute(context.Background(), map[string]interface{}{"expression": expr})
		require.Error(t, err, expr)
	}
	_, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.Error(t, err)
}

func TestCurrentTimeTimezone(t *testing.T) {
	tool := &CurrentTimeTool{}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"timezone": "UTC"})
	require.NoError(t, err)
	require.Contains(t, out, "UTC")

	_, err = tool.Execute(context.Background(), map[string]interface{}{"timezone": "Not/AZone"})
	require.Error(t, err)
}

func TestRegistryListSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&WebSearchTool{})
	reg.Register(&CalculatorTool{})
	reg.Register(&CurrentTimeTool{})
	list := reg.List()
	require.Len(t, list, 3)
	require.Equal(t, "calculator", list[0].Name())
	require.Equal(t, "current_time", list[1].Name())
	require.Equal(t, "web_search", list[2].Name())
}
