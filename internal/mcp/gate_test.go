package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func names(regs []Registration) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.Name
	}
	return out
}

func TestSelectTools(t *testing.T) {
	tests := []struct {
		name     string
		settings GateSettings
		want     []string
		bound    bool
	}{
		{
			name:     "parameterized",
			settings: GateSettings{},
			want:     []string{ToolFind, ToolStore, ToolListCollections, ToolCollectionInfo, ToolMatch},
		},
		{
			name:     "bound",
			settings: GateSettings{CollectionName: "memories"},
			want:     []string{ToolFind, ToolStore, ToolListCollections, ToolCollectionInfo, ToolMatch},
			bound:    true,
		},
		{
			name:     "read-only parameterized",
			settings: GateSettings{ReadOnly: true},
			want:     []string{ToolFind, ToolListCollections, ToolCollectionInfo, ToolMatch},
		},
		{
			name:     "read-only bound",
			settings: GateSettings{CollectionName: "memories", ReadOnly: true},
			want:     []string{ToolFind, ToolListCollections, ToolCollectionInfo, ToolMatch},
			bound:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := SelectTools(tt.settings)
			require.Equal(t, tt.want, names(regs))

			for _, r := range regs {
				require.NotNil(t, r.Build, r.Name)
				if tt.settings.ReadOnly {
					require.False(t, r.Mutating, "%s must not be registered read-only", r.Name)
				}
				switch r.Name {
				case ToolFind, ToolStore, ToolMatch:
					require.Equal(t, tt.bound, r.Bound, r.Name)
				default:
					require.False(t, r.Bound, r.Name)
				}
			}
		})
	}
}

// TestSelectTools_Schemas checks the collection_name parameter follows the binding
func TestSelectTools_Schemas(t *testing.T) {
	deps := newTestDeps(t)

	for _, collection := range []string{"", "memories"} {
		for _, r := range SelectTools(GateSettings{CollectionName: collection}) {
			tool, err := r.Build(deps)
			require.NoError(t, err)
			require.Equal(t, r.Name, tool.Name)
			require.Equal(t, r.Mutating, tool.Mutating)

			_, hasCollection := tool.InputSchema.Properties[paramCollectionName]
			switch r.Name {
			case ToolListCollections:
				require.False(t, hasCollection)
			case ToolCollectionInfo:
				require.True(t, hasCollection)
				require.Contains(t, tool.InputSchema.Required, paramCollectionName)
			default:
				require.Equal(t, collection == "", hasCollection, "%s bound=%q", r.Name, collection)
			}
		}
	}
}

func TestSelectTools_Descriptions(t *testing.T) {
	regs := SelectTools(GateSettings{
		ToolDescriptions: map[string]string{ToolFind: "Look up notes", ToolMatch: ""},
	})
	deps := newTestDeps(t)

	got := map[string]string{}
	for _, r := range regs {
		tool, err := r.Build(deps)
		require.NoError(t, err)
		got[tool.Name] = tool.Description
	}

	require.Equal(t, "Look up notes", got[ToolFind])
	require.Equal(t, DefaultDescriptions[ToolMatch], got[ToolMatch])
	require.Equal(t, DefaultDescriptions[ToolStore], got[ToolStore])
}

func TestSelectTools_Aliases(t *testing.T) {
	aliases := map[string][]string{}
	for _, r := range SelectTools(GateSettings{}) {
		aliases[r.Name] = r.Aliases
	}
	require.Equal(t, []string{ToolFindMemories}, aliases[ToolFind])
	require.Equal(t, []string{ToolStoreMemory}, aliases[ToolStore])

	for _, r := range SelectTools(GateSettings{ReadOnly: true}) {
		require.NotContains(t, r.Aliases, ToolStoreMemory)
	}
}

func TestToolFactories_MissingDeps(t *testing.T) {
	for _, r := range SelectTools(GateSettings{}) {
		_, err := r.Build(Deps{})
		require.Error(t, err, r.Name)
	}
}
