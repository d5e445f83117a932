package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/ir"
)

func TestCompileCollectionsKeepsDeclarationOrder(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		collection: tasks: start_position: 1
		collection: items: group_by: list_id: int
	`)

	specs, err := CompileCollections(v)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "tasks", specs[0].Name)
	assert.Equal(t, "items", specs[1].Name)
}

func TestCompileCollectionsNoCollections(t *testing.T) {
	ctx := cuecontext.New()
	specs, err := CompileCollections(ctx.CompileString(`other: 1`))
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestCompileCollectionsReportsValidation(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`collection: items: group_by: position: int`)

	_, err := CompileCollections(v)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "collection.items", compileErr.Field)
	assert.Contains(t, compileErr.Message, ErrReservedColumnName)
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.cue")
	src := `
collection: cards: {
	group_by: {
		board: string
		lane:  int
	}
	default_order: true
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	specs, err := CompileFile(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, []ir.GroupColumn{
		{Name: "board", Type: ir.ColumnString},
		{Name: "lane", Type: ir.ColumnInt},
	}, specs[0].GroupBy)
}

func TestCompileFileSyntaxErrorHasPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("collection: {\n"), 0644))

	_, err := CompileFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestCompileFileMissing(t *testing.T) {
	_, err := CompileFile(filepath.Join(t.TempDir(), "nope.cue"))
	assert.Error(t, err)
}
