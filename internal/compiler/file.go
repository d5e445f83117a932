package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/ordinal/internal/ir"
)

// CompileCollections compiles every field of the top-level "collection"
// struct in root, in declaration order. Each spec is also validated; the
// first validation error is returned as a *CompileError.
func CompileCollections(root cue.Value) ([]ir.CollectionSpec, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	collVal := root.LookupPath(cue.ParsePath("collection"))
	if !collVal.Exists() {
		return nil, nil
	}

	iter, err := collVal.Fields()
	if err != nil {
		return nil, &CompileError{
			Field:   "collection",
			Message: "must be a struct of collection definitions",
			Pos:     collVal.Pos(),
		}
	}

	var specs []ir.CollectionSpec
	for iter.Next() {
		spec, err := CompileCollection(iter.Value())
		if err != nil {
			return nil, err
		}
		if errs := Validate(spec); len(errs) > 0 {
			return nil, &CompileError{
				Field:   "collection." + iter.Label(),
				Message: errs[0].Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileFile reads one CUE file and compiles its collections.
func CompileFile(path string) ([]ir.CollectionSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	return CompileCollections(v)
}
