package znode

import (
	"testing"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		sequential    bool
		errorExpected bool
	}{
		{
			name:          "empty string",
			path:          "",
			errorExpected: true,
		},
		{
			name:          "not starting at root",
			path:          "node/other/one",
			errorExpected: true,
		},
		{
			name:          "not ending with node name",
			path:          "/a/b/",
			errorExpected: true,
		},
		{
			name:       "sequential may end with a separator",
			path:       "/a/b/",
			sequential: true,
		},
		{
			name: "root",
			path: "/",
		},
		{
			name: "no parents",
			path: "/x",
		},
		{
			name: "multiple parents",
			path: "/x/y/z",
		},
		{
			name:          "empty name between path separator",
			path:          "//y/z",
			errorExpected: true,
		},
		{
			name:          "relative name",
			path:          "/x/../y",
			errorExpected: true,
		},
		{
			name:          "null character",
			path:          "/x\x00y",
			errorExpected: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidatePath(test.path, test.sequential)
			if test.errorExpected {
				assert.ErrorIs(t, err, zookeeper.ErrBadArguments)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedParent string
		expectedName   string
	}{
		{
			name:           "no ancestors",
			path:           "/node",
			expectedParent: "/",
			expectedName:   "node",
		},
		{
			name:           "1 ancestor",
			path:           "/a1/node",
			expectedParent: "/a1",
			expectedName:   "node",
		},
		{
			name:           "multiple ancestors",
			path:           "/a1/a2/a3/node",
			expectedParent: "/a1/a2/a3",
			expectedName:   "node",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parent, name := splitPath(test.path)
			assert.Equal(t, test.expectedParent, parent)
			assert.Equal(t, test.expectedName, name)
			assert.Equal(t, test.path, joinPath(parent, name))
		})
	}
}
