package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeReference(t *testing.T) {
	tests := []struct {
		input string
		want  TypeReference
	}{
		{"Int", Inbuilt(InbuiltInt, true)},
		{"String!", Inbuilt(InbuiltString, false)},
		{"Address", Custom(NewQualifiedName("app", "Address"), true)},
		{"[Int!]", List(Inbuilt(InbuiltInt, false), true)},
		{"[[Address]!]!", List(List(Custom(NewQualifiedName("app", "Address"), true), false), false)},
		{" [ ID ] ", List(Inbuilt(InbuiltID, true), true)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTypeReference(tt.input, "app")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTypeReference_Invalid(t *testing.T) {
	for _, input := range []string{"", "[Int", "Int!!", "1Int", "[]", "Int]"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTypeReference(input, "app")
			require.Error(t, err)
		})
	}
}

func TestTypeReference_String(t *testing.T) {
	ref, err := ParseTypeReference("[[Address]!]!", "app")
	require.NoError(t, err)
	assert.Equal(t, "[[Address]!]!", ref.String())
	assert.True(t, ref.IsList())
	assert.Equal(t, CustomTypeName{Name: NewQualifiedName("app", "Address")}, ref.NamedTypeName())
}

func TestFieldNestedness_Max(t *testing.T) {
	assert.Equal(t, ObjectNested, NotNested.Max(ObjectNested))
	assert.Equal(t, ArrayNested, ArrayNested.Max(ObjectNested))
	assert.Equal(t, NotNested, NotNested.Max(NotNested))
	assert.Equal(t, "array_nested", ArrayNested.String())
}
